package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"round-lottery/internal/auth"
	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts hits per subject. Implemented by cache.RedisService.
type RateLimiter interface {
	Allow(ctx context.Context, subject string, limit int64, window time.Duration) (bool, error)
}

type BetHandler struct {
	accounts  *services.AccountService
	reporting *services.ReportingService
	limiter   RateLimiter
}

func NewBetHandler(accounts *services.AccountService, reporting *services.ReportingService, limiter RateLimiter) *BetHandler {
	return &BetHandler{
		accounts:  accounts,
		reporting: reporting,
		limiter:   limiter,
	}
}

// betsPerMinute caps bet placement per account when a limiter is configured
const betsPerMinute = 30

// PlaceBet stakes on the next round
// POST /bets
func (h *BetHandler) PlaceBet(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.Request.Context(), fmt.Sprintf("bets:%d", accountID), betsPerMinute, time.Minute)
		if err == nil && !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many bets, slow down"})
			return
		}
	}

	var req services.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bet, err := h.accounts.PlaceBet(c.Request.Context(), accountID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    bet,
	})
}

// GetBets returns the caller's bets, newest first
// GET /bets
func (h *BetHandler) GetBets(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, offset := paging(c, 50)

	bets, err := h.accounts.ListBets(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bets,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetPnL returns the caller's profit and loss
// GET /bets/pnl
func (h *BetHandler) GetPnL(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	pnl, err := h.reporting.CalculatePnL(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    pnl,
	})
}
