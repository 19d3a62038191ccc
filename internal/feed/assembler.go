package feed

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vondrachek/linkboard/backend/internal/models"
)

// Mode selects which posts a feed query returns.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeByUser    Mode = "posts"
	ModeUpvoted   Mode = "upvoted"
	ModeDownvoted Mode = "downvoted"
	ModeCommented Mode = "comments"
)

var (
	ErrUnknownMode = errors.New("feed: unknown feed mode")
	ErrBadCursor   = errors.New("feed: cursor does not reference a post")
)

// Resolver is the slice of the identity client the assembler needs.
type Resolver interface {
	ResolveAuthors(ctx context.Context, ids []string) (map[string]models.Author, error)
}

// Item is one enriched feed row: the post, its resolved author, and the net
// vote score recomputed from the votes table.
type Item struct {
	Post   models.Post   `json:"post"`
	Author models.Author `json:"author"`
	Score  int           `json:"score"`
}

// Page is one cursor-delimited slice of a feed. NextCursor is the id of the
// first post of the following page, absent when the feed is exhausted.
type Page struct {
	Posts      []Item `json:"posts"`
	NextCursor *int   `json:"next_cursor,omitempty"`
}

// Assembler joins posts with vote tallies and resolved author profiles.
type Assembler struct {
	db       *gorm.DB
	resolver Resolver
}

func NewAssembler(db *gorm.DB, resolver Resolver) *Assembler {
	return &Assembler{db: db, resolver: resolver}
}

// List returns one feed page: newest first, id as tie-break, limit+1 rows
// fetched so the extra row (if any) becomes the next cursor. The cursor row
// itself is the first row of the page it opens. Exactly one identity
// resolution call is made per page regardless of page size.
func (a *Assembler) List(ctx context.Context, mode Mode, subjectID string, limit int, cursor *int) (*Page, error) {
	q := a.db.WithContext(ctx).Model(&models.Post{})

	switch mode {
	case ModeAll:
	case ModeByUser:
		q = q.Where("posts.author_id = ?", subjectID)
	case ModeUpvoted:
		q = q.Where("EXISTS (SELECT 1 FROM votes v WHERE v.post_id = posts.id AND v.user_id = ? AND v.value = 1)", subjectID)
	case ModeDownvoted:
		q = q.Where("EXISTS (SELECT 1 FROM votes v WHERE v.post_id = posts.id AND v.user_id = ? AND v.value = -1)", subjectID)
	case ModeCommented:
		q = q.Where("EXISTS (SELECT 1 FROM comments c WHERE c.post_id = posts.id AND c.user_id = ?)", subjectID)
	default:
		return nil, ErrUnknownMode
	}

	if cursor != nil {
		var pivot models.Post
		err := a.db.WithContext(ctx).Select("id", "created_at").First(&pivot, *cursor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCursor
		}
		if err != nil {
			return nil, err
		}
		q = q.Where("posts.created_at < ? OR (posts.created_at = ? AND posts.id <= ?)",
			pivot.CreatedAt, pivot.CreatedAt, pivot.ID)
	}

	var posts []models.Post
	if err := q.Order("posts.created_at DESC, posts.id DESC").Limit(limit + 1).Find(&posts).Error; err != nil {
		return nil, err
	}

	var nextCursor *int
	if len(posts) > limit {
		next := posts[limit].ID
		nextCursor = &next
		posts = posts[:limit]
	}

	items, err := a.enrich(ctx, posts)
	if err != nil {
		return nil, err
	}

	return &Page{Posts: items, NextCursor: nextCursor}, nil
}

// GetPost returns a single enriched post. A missing post surfaces as
// gorm.ErrRecordNotFound.
func (a *Assembler) GetPost(ctx context.Context, id int) (*Item, error) {
	var post models.Post
	if err := a.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}

	items, err := a.enrich(ctx, []models.Post{post})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (a *Assembler) enrich(ctx context.Context, posts []models.Post) ([]Item, error) {
	items := make([]Item, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	postIDs := make([]int, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
		authorIDs = append(authorIDs, post.AuthorID)
	}

	scores, err := a.scores(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	// One batched lookup per page. A single unresolvable author fails the
	// whole page; no partial results.
	authors, err := a.resolver.ResolveAuthors(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	for _, post := range posts {
		items = append(items, Item{
			Post:   post,
			Author: authors[post.AuthorID],
			Score:  scores[post.ID],
		})
	}

	return items, nil
}

func (a *Assembler) scores(ctx context.Context, postIDs []int) (map[int]int, error) {
	var rows []struct {
		PostID int
		Score  int
	}

	err := a.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("post_id, COALESCE(SUM(value), 0) AS score").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	scores := make(map[int]int, len(rows))
	for _, row := range rows {
		scores[row.PostID] = row.Score
	}
	return scores, nil
}
