package handlers

import (
	"encoding/base64"
	"net/http"

	"round-lottery/internal/auth"
	"round-lottery/internal/models"
	"round-lottery/internal/ocr"
	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	approvals *services.ApprovalService
	accounts  *services.AccountService
}

func NewPaymentHandler(approvals *services.ApprovalService, accounts *services.AccountService) *PaymentHandler {
	return &PaymentHandler{
		approvals: approvals,
		accounts:  accounts,
	}
}

// Deposit submits a deposit request with its payment reference
// POST /payments/deposit
func (h *PaymentHandler) Deposit(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Amount       int64  `json:"amount" binding:"required"`
		Reference    string `json:"reference" binding:"required"`
		ReceiptURL   string `json:"receipt_url"`
		ReceiptImage string `json:"receipt_image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var receipt *ocr.Receipt
	if req.ReceiptURL != "" || req.ReceiptImage != "" {
		receipt = &ocr.Receipt{ImageURL: req.ReceiptURL}
		if req.ReceiptImage != "" {
			image, err := base64.StdEncoding.DecodeString(req.ReceiptImage)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "receipt_image must be base64"})
				return
			}
			receipt.Image = image
		}
	}

	entry, err := h.approvals.SubmitDeposit(c.Request.Context(), accountID, req.Amount, req.Reference, receipt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    entry,
	})
}

// Withdraw submits a withdrawal request
// POST /payments/withdraw
func (h *PaymentHandler) Withdraw(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Amount  int64                    `json:"amount" binding:"required"`
		Details models.WithdrawalDetails `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.approvals.SubmitWithdrawal(c.Request.Context(), accountID, req.Amount, req.Details)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    entry,
	})
}

// GetTransactions returns the caller's ledger, newest first
// GET /payments/transactions?type=Deposit
func (h *PaymentHandler) GetTransactions(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, offset := paging(c, 50)

	entries, err := h.accounts.ListTransactions(c.Request.Context(), accountID, models.TransactionType(c.Query("type")), limit, offset)
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
