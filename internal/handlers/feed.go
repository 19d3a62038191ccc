package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vondrachek/linkboard/backend/internal/feed"
)

const (
	defaultPageSize  = 10
	maxGlobalLimit   = 15
	maxUserFeedLimit = 20
)

type FeedHandler struct {
	assembler *feed.Assembler
}

func NewFeedHandler(assembler *feed.Assembler) *FeedHandler {
	return &FeedHandler{assembler: assembler}
}

// pageParams parses the limit and cursor query params shared by the feed
// endpoints. An out-of-range limit or malformed cursor is rejected before any
// store access.
func pageParams(c *gin.Context, maxLimit int) (int, *int, bool) {
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return 0, nil, false
		}
		limit = parsed
	}

	var cursor *int
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return 0, nil, false
		}
		cursor = &parsed
	}

	return limit, cursor, true
}

// GetPosts returns one page of the global feed, newest first
func (h *FeedHandler) GetPosts(c *gin.Context) {
	limit, cursor, ok := pageParams(c, maxGlobalLimit)
	if !ok {
		return
	}

	page, err := h.assembler.List(c.Request.Context(), feed.ModeAll, "", limit, cursor)
	if err != nil {
		if errors.Is(err, feed.ErrBadCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetPost returns a single post with its resolved author and vote score
func (h *FeedHandler) GetPost(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	item, err := h.assembler.GetPost(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// GetUserFeed returns one page of a per-user feed: the user's own posts, or
// the posts they upvoted, downvoted, or commented on
func (h *FeedHandler) GetUserFeed(c *gin.Context) {
	userID := c.Param("id")

	mode := feed.Mode(c.DefaultQuery("feed", string(feed.ModeByUser)))
	switch mode {
	case feed.ModeByUser, feed.ModeUpvoted, feed.ModeDownvoted, feed.ModeCommented:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed"})
		return
	}

	limit, cursor, ok := pageParams(c, maxUserFeedLimit)
	if !ok {
		return
	}

	page, err := h.assembler.List(c.Request.Context(), mode, userID, limit, cursor)
	if err != nil {
		if errors.Is(err, feed.ErrBadCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch feed"})
		return
	}

	c.JSON(http.StatusOK, page)
}
