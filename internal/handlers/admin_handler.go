package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"round-lottery/internal/auth"
	"round-lottery/internal/models"
	"round-lottery/internal/repository"
	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	adminService *services.AdminService
	approvals    *services.ApprovalService
	reporting    *services.ReportingService
	settings     *services.SettingsService
	clock        services.Clock
}

func NewAdminHandler(
	adminService *services.AdminService,
	approvals *services.ApprovalService,
	reporting *services.ReportingService,
	settings *services.SettingsService,
	clock services.Clock,
) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		approvals:    approvals,
		reporting:    reporting,
		settings:     settings,
		clock:        clock,
	}
}

// GetDashboard returns today's platform totals and the pending queue size
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.reporting.PlatformStats(ctx, h.clock.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	pending, err := h.adminService.GetPendingTransactions(ctx, "")
	if err != nil {
		respondError(c, err)
		return
	}
	logs, err := h.adminService.GetAdminLogs(ctx, 10, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"stats":       stats,
			"pending":     len(pending),
			"recent_logs": logs,
		},
	})
}

// GetStats returns platform totals for one UTC day
// GET /admin/stats?date=2026-03-02
func (h *AdminHandler) GetStats(c *gin.Context) {
	date := h.clock.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	stats, err := h.reporting.PlatformStats(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// GetAccounts returns all accounts
func (h *AdminHandler) GetAccounts(c *gin.Context) {
	limit, offset := paging(c, 50)
	search := c.Query("search")

	accounts, total, err := h.adminService.GetAllAccounts(c.Request.Context(), limit, offset, search)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    accounts,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// CreateAccount opens an account on behalf of a player
func (h *AdminHandler) CreateAccount(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)

	var req struct {
		services.RegisterRequest
		InitialPoints int64 `json:"initial_points"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.adminService.CreateAccount(c.Request.Context(), adminID, req.RegisterRequest, req.InitialPoints)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    account,
	})
}

// AdjustBalance credits (positive amount) or debits (negative amount) an account
func (h *AdminHandler) AdjustBalance(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	accountID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount int64  `json:"amount" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.adminService.AdjustBalance(c.Request.Context(), adminID, accountID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entry,
	})
}

// ToggleBetLock flips whether the account may place bets
func (h *AdminHandler) ToggleBetLock(c *gin.Context) {
	h.toggle(c, h.adminService.ToggleBetLock)
}

// ToggleProfileLock flips whether the account may log in
func (h *AdminHandler) ToggleProfileLock(c *gin.Context) {
	h.toggle(c, h.adminService.ToggleProfileLock)
}

func (h *AdminHandler) toggle(c *gin.Context, fn func(ctx context.Context, adminID, accountID uint) (*models.Account, error)) {
	adminID, _ := auth.GetAccountID(c)
	accountID, ok := idParam(c, "id")
	if !ok {
		return
	}

	account, err := fn(c.Request.Context(), adminID, accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    account,
	})
}

// UpdateRole changes an account's role and agent commission rate
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	accountID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Role           models.Role     `json:"role" binding:"required"`
		CommissionRate decimal.Decimal `json:"commission_rate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.adminService.UpdateRole(c.Request.Context(), adminID, accountID, req.Role, req.CommissionRate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    account,
	})
}

// ResetPassword sets a new password for an account
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	accountID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.ResetPassword(c.Request.Context(), adminID, accountID, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password reset",
	})
}

// Reconcile compares an account's balance with its ledger
func (h *AdminHandler) Reconcile(c *gin.Context) {
	accountID, ok := idParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reporting.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// GetAccountPnL returns a player's profit and loss
func (h *AdminHandler) GetAccountPnL(c *gin.Context) {
	accountID, ok := idParam(c, "id")
	if !ok {
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

// GetTransactions returns ledger entries filtered by account, type and status
func (h *AdminHandler) GetTransactions(c *gin.Context) {
	limit, offset := paging(c, 50)

	var filter repository.TransactionFilter
	if raw := c.Query("account_id"); raw != "" {
		accountID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account_id"})
			return
		}
		filter.AccountID = uint(accountID)
	}
	filter.Type = models.TransactionType(c.Query("type"))
	filter.Status = models.TransactionStatus(c.Query("status"))

	entries, err := h.adminService.GetTransactions(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetPendingTransactions returns the approval queue, oldest first
func (h *AdminHandler) GetPendingTransactions(c *gin.Context) {
	entries, err := h.adminService.GetPendingTransactions(c.Request.Context(), models.TransactionType(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}

// ApproveTransaction approves a pending deposit or withdrawal. A rejected
// outcome (duplicate reference, insufficient balance) is still a 200.
func (h *AdminHandler) ApproveTransaction(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	transactionID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var opts services.ApprovalOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.approvals.Approve(c.Request.Context(), transactionID, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	err = h.adminService.LogAdminAction(c.Request.Context(), adminID, "APPROVE_TRANSACTION", &result.Transaction.AccountID, map[string]interface{}{
		"transaction_id": transactionID,
		"outcome":        result.Outcome,
		"bonus":          opts.Bonus,
	})
	if err != nil {
		log.Printf("[Admin] Failed to log approval of transaction %d by admin %d: %v", transactionID, adminID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// RejectTransaction rejects a pending deposit or withdrawal
func (h *AdminHandler) RejectTransaction(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	transactionID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	entry, err := h.approvals.Reject(c.Request.Context(), transactionID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	err = h.adminService.LogAdminAction(c.Request.Context(), adminID, "REJECT_TRANSACTION", &entry.AccountID, map[string]interface{}{
		"transaction_id": transactionID,
		"reason":         entry.Description,
	})
	if err != nil {
		log.Printf("[Admin] Failed to log rejection of transaction %d by admin %d: %v", transactionID, adminID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entry,
	})
}

// AddTransactionNote appends an admin note to a ledger entry
func (h *AdminHandler) AddTransactionNote(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	transactionID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.AppendTransactionNote(c.Request.Context(), adminID, transactionID, req.Note); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetAgentReports returns every agent's profit and commission
func (h *AdminHandler) GetAgentReports(c *gin.Context) {
	reports, err := h.reporting.AgentReports(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reports,
	})
}

// PayAgentCommission credits an agent with the commission currently due
func (h *AdminHandler) PayAgentCommission(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	agentID, ok := idParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.adminService.PayAgentCommission(c.Request.Context(), adminID, agentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entry,
	})
}

// GetSettings returns the runtime switches
func (h *AdminHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	betting, err := h.settings.BettingEnabled(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	autoApprove, err := h.settings.AutoApproveDeposits(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"betting_enabled":       betting,
			"auto_approve_deposits": autoApprove,
		},
	})
}

// UpdateSettings changes the runtime switches present in the body
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)
	ctx := c.Request.Context()

	var req struct {
		BettingEnabled      *bool `json:"betting_enabled"`
		AutoApproveDeposits *bool `json:"auto_approve_deposits"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.BettingEnabled != nil {
		if err := h.adminService.SetBettingEnabled(ctx, adminID, *req.BettingEnabled); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.AutoApproveDeposits != nil {
		if err := h.adminService.SetAutoApproveDeposits(ctx, adminID, *req.AutoApproveDeposits); err != nil {
			respondError(c, err)
			return
		}
	}

	h.GetSettings(c)
}

// Broadcast pushes an announcement to every connected client
func (h *AdminHandler) Broadcast(c *gin.Context) {
	adminID, _ := auth.GetAccountID(c)

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.Broadcast(c.Request.Context(), adminID, req.Message); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Broadcast sent",
	})
}

// GetNotifications returns the admin feed
func (h *AdminHandler) GetNotifications(c *gin.Context) {
	limit, _ := paging(c, 50)

	notifications, err := h.adminService.GetNotifications(c.Request.Context(), c.Query("unread") == "true", limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    notifications,
	})
}

// MarkNotificationRead marks one admin notification read
func (h *AdminHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.adminService.MarkNotificationRead(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetAdminLogs returns admin action logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	limit, offset := paging(c, 50)

	logs, err := h.adminService.GetAdminLogs(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"limit":   limit,
		"offset":  offset,
	})
}
