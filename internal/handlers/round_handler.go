package handlers

import (
	"net/http"
	"strconv"

	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
)

type RoundHandler struct {
	roundClock *services.RoundClock
	generator  *services.ResultGenerator
	accounts   *services.AccountService
	clock      services.Clock
}

func NewRoundHandler(roundClock *services.RoundClock, generator *services.ResultGenerator, accounts *services.AccountService, clock services.Clock) *RoundHandler {
	return &RoundHandler{
		roundClock: roundClock,
		generator:  generator,
		accounts:   accounts,
		clock:      clock,
	}
}

// GetCurrent returns the current and next rounds and whether bets are open
// GET /rounds/current
func (h *RoundHandler) GetCurrent(c *gin.Context) {
	current, next := h.roundClock.At(h.clock.Now())

	_, open, err := h.accounts.BettingRound(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"current":      current,
			"next":         next,
			"betting_open": open,
		},
	})
}

// GetUpcoming returns the next rounds
// GET /rounds/upcoming?count=K
func (h *RoundHandler) GetUpcoming(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "5"))
	if err != nil || count <= 0 || count > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 100"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.roundClock.Upcoming(h.clock.Now(), count).Collect(),
	})
}

// GetLatestResult returns the result of the latest round, drawing it if needed
// GET /results/latest
func (h *RoundHandler) GetLatestResult(c *gin.Context) {
	result, err := h.generator.CurrentResult(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetResults returns result history, newest first
// GET /results
func (h *RoundHandler) GetResults(c *gin.Context) {
	limit, offset := paging(c, 20)

	results, err := h.generator.ListResults(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    results,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetResult returns one round's result
// GET /results/:date/:round
func (h *RoundHandler) GetResult(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("round"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid round"})
		return
	}

	result, err := h.generator.GetResult(c.Request.Context(), number, c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
