package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/vondrachek/linkboard/backend/internal/feed"
	"github.com/vondrachek/linkboard/backend/internal/ratelimit"
)

// Handler combines all handler types
type Handler struct {
	Post    *PostHandler
	Comment *CommentHandler
	Feed    *FeedHandler
}

// NewHandler creates a unified handler with all sub-handlers. The identity
// resolver and rate limiter are the process-wide shared instances; handlers
// receive them by injection rather than reaching for globals.
func NewHandler(db *gorm.DB, resolver feed.Resolver, limiter ratelimit.Limiter) *Handler {
	assembler := feed.NewAssembler(db, resolver)

	return &Handler{
		Post:    NewPostHandler(db, limiter),
		Comment: NewCommentHandler(db, resolver, limiter),
		Feed:    NewFeedHandler(assembler),
	}
}

var validate = validator.New()

// currentUserID returns the authenticated caller id set by the auth
// middleware.
func currentUserID(c *gin.Context) (string, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
