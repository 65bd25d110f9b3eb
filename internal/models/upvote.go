package models

import "time"

// Vote directions stored in Upvote.Value.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Upvote is a user's current vote on a post.
// The (UserID, PostID) pair is the primary key, so a user holds at most one vote per post.
type Upvote struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
	Post *Post `gorm:"foreignKey:PostID" json:"-"`
}

// IsValidVote reports whether v is an allowed vote direction.
func IsValidVote(v int) bool {
	return v == VoteUp || v == VoteDown
}
