package models

import "time"

// Comment stores a snapshot of the commenter's username and picture as they
// were at comment time; the snapshot is never refreshed when the profile
// changes later.
type Comment struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	PostID    int       `gorm:"index;not null" json:"post_id"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Picture   string    `json:"picture"`
	Comment   string    `gorm:"not null" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Comment string `json:"comment" validate:"required,min=1"`
}
