package handlers

import (
	"round-lottery/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers bundles every HTTP handler the API exposes
type Handlers struct {
	Auth          *AuthHandler
	Rounds        *RoundHandler
	Bets          *BetHandler
	Payments      *PaymentHandler
	Referrals     *ReferralHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
}

// RegisterRoutes mounts the API under /api
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	// Public routes
	public := router.Group("/api")
	{
		public.POST("/auth/register", h.Auth.Register)
		public.POST("/auth/login", h.Auth.Login)
		public.POST("/auth/logout", h.Auth.Logout)

		public.GET("/rounds/current", h.Rounds.GetCurrent)
		public.GET("/rounds/upcoming", h.Rounds.GetUpcoming)
		public.GET("/results", h.Rounds.GetResults)
		public.GET("/results/latest", h.Rounds.GetLatestResult)
		public.GET("/results/:date/:round", h.Rounds.GetResult)
	}

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.GET("/auth/me", h.Auth.GetMe)
		api.POST("/auth/password", h.Auth.ChangePassword)
		api.GET("/auth/tiers", h.Auth.GetTierHistory)

		api.POST("/bets", h.Bets.PlaceBet)
		api.GET("/bets", h.Bets.GetBets)
		api.GET("/bets/pnl", h.Bets.GetPnL)

		api.POST("/payments/deposit", h.Payments.Deposit)
		api.POST("/payments/withdraw", h.Payments.Withdraw)
		api.GET("/payments/transactions", h.Payments.GetTransactions)

		api.GET("/referrals/stats", h.Referrals.GetReferralStats)

		api.GET("/notifications", h.Notifications.GetNotifications)
		api.POST("/notifications/:id/read", h.Notifications.MarkRead)
		api.GET("/ws", h.Notifications.Stream)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(auth.AdminMiddleware(h.Admin.adminService.IsAdmin))
	{
		admin.GET("/dashboard", h.Admin.GetDashboard)
		admin.GET("/stats", h.Admin.GetStats)
		admin.GET("/logs", h.Admin.GetAdminLogs)

		// Account management
		admin.GET("/accounts", h.Admin.GetAccounts)
		admin.POST("/accounts", h.Admin.CreateAccount)
		admin.POST("/accounts/:id/balance", h.Admin.AdjustBalance)
		admin.POST("/accounts/:id/bet-lock", h.Admin.ToggleBetLock)
		admin.POST("/accounts/:id/profile-lock", h.Admin.ToggleProfileLock)
		admin.PUT("/accounts/:id/role", h.Admin.UpdateRole)
		admin.POST("/accounts/:id/password", h.Admin.ResetPassword)
		admin.GET("/accounts/:id/reconcile", h.Admin.Reconcile)
		admin.GET("/accounts/:id/pnl", h.Admin.GetAccountPnL)

		// Payments
		admin.GET("/transactions", h.Admin.GetTransactions)
		admin.GET("/transactions/pending", h.Admin.GetPendingTransactions)
		admin.POST("/transactions/:id/approve", h.Admin.ApproveTransaction)
		admin.POST("/transactions/:id/reject", h.Admin.RejectTransaction)
		admin.POST("/transactions/:id/note", h.Admin.AddTransactionNote)

		// Agents
		admin.GET("/agents", h.Admin.GetAgentReports)
		admin.POST("/agents/:id/commission", h.Admin.PayAgentCommission)

		admin.GET("/settings", h.Admin.GetSettings)
		admin.PUT("/settings", h.Admin.UpdateSettings)
		admin.POST("/broadcast", h.Admin.Broadcast)
		admin.GET("/notifications", h.Admin.GetNotifications)
		admin.POST("/notifications/:id/read", h.Admin.MarkNotificationRead)
	}
}
