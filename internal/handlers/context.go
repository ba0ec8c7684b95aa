package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/events"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func eventMeta(c *gin.Context, userID string) events.Meta {
	return events.Meta{
		RequestID: requestIDFromContext(c),
		TraceID:   observability.TraceIDFromContext(c.Request.Context()),
		UserID:    userID,
	}
}

// respondError writes the error body and status for err.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	c.JSON(appErr.Code.HTTPStatus(), gin.H{"error": appErr.Message, "code": appErr.Code})
}
