package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vondrachek/linkboard/backend/internal/feed"
	"github.com/vondrachek/linkboard/backend/internal/models"
	"github.com/vondrachek/linkboard/backend/internal/ratelimit"
)

type CommentHandler struct {
	db       *gorm.DB
	resolver feed.Resolver
	limiter  ratelimit.Limiter
}

func NewCommentHandler(db *gorm.DB, resolver feed.Resolver, limiter ratelimit.Limiter) *CommentHandler {
	return &CommentHandler{db: db, resolver: resolver, limiter: limiter}
}

// GetComments returns all comments for a post, newest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var comments []models.Comment
	if err := h.db.WithContext(c.Request.Context()).
		Where("post_id = ?", postID).
		Order("created_at desc, id desc").
		Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	// If no comments, return empty array not null
	if comments == nil {
		comments = []models.Comment{}
	}

	c.JSON(http.StatusOK, comments)
}

// CreateComment creates a new comment on a post (PROTECTED). The commenter's
// username and picture are snapshotted onto the row as they are right now.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	callerID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input.Comment = strings.TrimSpace(input.Comment)
	if err := validate.Struct(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment cannot be empty"})
		return
	}

	if input.UserID != callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only comment as yourself"})
		return
	}

	// Verify post exists
	var post models.Post
	if err := h.db.WithContext(c.Request.Context()).First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}

	allowed, err := h.limiter.Allow(c.Request.Context(), ratelimit.ActionComment, callerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "You are commenting too often, try again later"})
		return
	}

	authors, err := h.resolver.ResolveAuthors(c.Request.Context(), []string{callerID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}
	author := authors[callerID]

	comment := models.Comment{
		PostID:   post.ID,
		UserID:   callerID,
		Username: author.Username,
		Picture:  author.ProfilePicture,
		Comment:  input.Comment,
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// DeleteComment deletes a comment (PROTECTED - owner only, re-checked against
// the stored user id)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, err := strconv.Atoi(c.Param("commentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment id"})
		return
	}

	callerID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.UserID != callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only act as yourself"})
		return
	}

	var comment models.Comment
	if err := h.db.WithContext(c.Request.Context()).First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comment"})
		return
	}

	if comment.UserID != callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own comments"})
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
