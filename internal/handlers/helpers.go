package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-core/internal/chat"
	"chat-core/internal/chaterrors"
	"chat-core/internal/middleware"
	"chat-core/internal/models"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if val, ok := c.Get("userID"); ok {
		if userID, ok := val.(string); ok && userID != "" {
			return &userID
		}
	}

	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}

	return nil
}

// requestContext carries the request id down to the audit trail.
func requestContext(c *gin.Context) context.Context {
	return chat.WithRequestID(c.Request.Context(), requestIDFromContext(c))
}

func principalOrAbort(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondError(c, chaterrors.ErrUnauthenticated)
		return models.Principal{}, false
	}
	return p, true
}

func respondError(c *gin.Context, err error) {
	c.JSON(chaterrors.HTTPStatus(err), gin.H{"error": chaterrors.PublicMessage(err)})
}

func parseMessageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, chaterrors.ErrInvalidArgument)
		return 0, false
	}
	return id, true
}
