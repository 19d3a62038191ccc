package models

import "time"

// Vote model - tracks individual user votes on posts.
// The composite unique index keeps at most one row per (post, user) pair.
type Vote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"not null;uniqueIndex:idx_votes_post_user" json:"post_id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_votes_post_user" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"` // +1 or -1
	CreatedAt time.Time `json:"created_at"`
}
