package models

import (
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

// snippetLength is the number of runes kept in Post.TextSnippet.
const snippetLength = 50

// Post represents a post in the forum.
type Post struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Title            string `gorm:"not null" json:"title"`
	Text             string `gorm:"type:text;not null" json:"text"`
	Points           int    `gorm:"not null;default:0" json:"points"`
	OriginalPosterID uint   `gorm:"not null;index" json:"original_poster_id"`
	OriginalPoster   *User  `gorm:"foreignKey:OriginalPosterID" json:"original_poster,omitempty"`
	// VoteStatus is the requesting user's current vote on this post (computed)
	VoteStatus *int `gorm:"-" json:"vote_status"`
	// TextSnippet is a short preview of Text (computed)
	TextSnippet string         `gorm:"-" json:"text_snippet"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Upvotes     []Upvote       `gorm:"foreignKey:PostID" json:"-"`
}

// FillSnippet populates TextSnippet from Text.
func (p *Post) FillSnippet() {
	if utf8.RuneCountInString(p.Text) <= snippetLength {
		p.TextSnippet = p.Text
		return
	}
	runes := []rune(p.Text)
	p.TextSnippet = string(runes[:snippetLength])
}
