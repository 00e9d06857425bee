package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/chaterrors"
)

// FeedHandler serves the public feed over HTTP.
type FeedHandler struct {
	service ChatService
}

// NewFeedHandler constructs a FeedHandler.
func NewFeedHandler(service ChatService) *FeedHandler {
	return &FeedHandler{service: service}
}

// ListMessages handles GET /messages?limit=.
func (h *FeedHandler) ListMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, chaterrors.ErrInvalidArgument)
			return
		}
		limit = parsed
	}

	msgs, err := h.service.PublicFeed(requestContext(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /messages.
func (h *FeedHandler) PostMessage(c *gin.Context) {
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

	if err := h.service.SendMessage(requestContext(c), p, req.Text); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// PostAdminMessage handles POST /admin/messages.
func (h *FeedHandler) PostAdminMessage(c *gin.Context) {
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

	if err := h.service.SendAdminMessage(requestContext(c), p, req.Text); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// PurgeMessages handles DELETE /admin/messages.
func (h *FeedHandler) PurgeMessages(c *gin.Context) {
	p, ok := principalOrAbort(c)
	if !ok {
		return
	}

	if err := h.service.PurgeAllMessages(requestContext(c), p); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Register mounts the handler on an authenticated route group.
func (h *FeedHandler) Register(r gin.IRoutes) {
	r.GET("/messages", h.ListMessages)
	r.POST("/messages", h.PostMessage)
	r.POST("/admin/messages", h.PostAdminMessage)
	r.DELETE("/admin/messages", h.PurgeMessages)
}
