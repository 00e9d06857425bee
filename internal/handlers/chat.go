package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/chat"
	"chat-core/internal/models"
)

// ChatService is the part of the chat core the REST surface uses.
type ChatService interface {
	AvailableUsers(ctx context.Context, p models.Principal) ([]chat.UserSummary, error)
	Conversation(ctx context.Context, p models.Principal, otherUserID string) ([]models.PrivateMessage, error)
	SendPrivateMessage(ctx context.Context, p models.Principal, toUserID, text string) (models.PrivateMessage, error)
	UpdateMessage(ctx context.Context, p models.Principal, id int64, text string) (models.PrivateMessage, error)
	DeleteMessage(ctx context.Context, p models.Principal, id int64) (models.PrivateMessage, error)
	PublicFeed(ctx context.Context, limit int) ([]models.PublicMessage, error)
	SendMessage(ctx context.Context, p models.Principal, text string) error
	SendAdminMessage(ctx context.Context, p models.Principal, text string) error
	PurgeAllMessages(ctx context.Context, p models.Principal) error
}

// ChatHandler serves private conversations over HTTP. Changes made here
// reach live connections through the same router as websocket calls.
type ChatHandler struct {
	service ChatService
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// ListUsers handles GET /users.
func (h *ChatHandler) ListUsers(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	users, err := h.service.AvailableUsers(requestContext(c), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetConversation handles GET /conversations/:user_id.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	msgs, err := h.service.Conversation(requestContext(c), p, c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostPrivateMessage handles POST /conversations/:user_id.
func (h *ChatHandler) PostPrivateMessage(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.SendPrivateMessage(requestContext(c), p, c.Param("user_id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UpdateMessage handles PATCH /private-messages/:message_id.
func (h *ChatHandler) UpdateMessage(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseMessageID(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.UpdateMessage(requestContext(c), p, id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage handles DELETE /private-messages/:message_id.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}
	id, ok := parseMessageID(c)
	if !ok {
		return
	}

	msg, err := h.service.DeleteMessage(requestContext(c), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Register mounts the handler on an authenticated route group.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.GET("/users", h.ListUsers)
	r.GET("/conversations/:user_id", h.GetConversation)
	r.POST("/conversations/:user_id", h.PostPrivateMessage)
	r.PATCH("/private-messages/:message_id", h.UpdateMessage)
	r.DELETE("/private-messages/:message_id", h.DeleteMessage)
}
