package handlers

import (
	"log"
	"net/http"

	"round-lottery/internal/auth"
	"round-lottery/internal/notify"
	"round-lottery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type NotificationHandler struct {
	accounts *services.AccountService
	admin    *services.AdminService
	hub      *notify.Hub
}

func NewNotificationHandler(accounts *services.AccountService, admin *services.AdminService, hub *notify.Hub) *NotificationHandler {
	return &NotificationHandler{
		accounts: accounts,
		admin:    admin,
		hub:      hub,
	}
}

// GetNotifications returns the caller's notifications, newest first
// GET /notifications?unread=true
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	limit, _ := paging(c, 50)

	notifications, err := h.accounts.ListNotifications(c.Request.Context(), accountID, c.Query("unread") == "true", limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    notifications,
	})
}

// MarkRead marks one of the caller's notifications read
// POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.accounts.MarkNotificationRead(c.Request.Context(), accountID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stream upgrades to a websocket that receives the caller's notifications
// and every broadcast
// GET /ws?token=...
func (h *NotificationHandler) Stream(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WebSocket] Failed to upgrade: %v", err)
		return
	}

	client := &notify.Client{
		AccountID: accountID,
		Admin:     h.admin.IsAdmin(c.Request.Context(), accountID),
		Conn:      conn,
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Account %d: %v", accountID, err)
			}
			return
		}
	}
}
