package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrProfileLocked),
		errors.Is(err, services.ErrBetLocked),
		errors.Is(err, services.ErrPrimaryAdmin):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrDuplicateReference),
		errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrBettingClosed):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrResultPending):
		return http.StatusAccepted
	case errors.Is(err, services.ErrInvalidBet),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrMissingReference),
		errors.Is(err, services.ErrInvalidDetails),
		errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal errors are
// logged and not echoed back.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paging(c *gin.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 || limit > 200 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
