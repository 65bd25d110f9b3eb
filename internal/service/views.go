package service

import "forum/internal/models"

// Viewer identifies who is making a request. The zero value is an anonymous viewer.
type Viewer struct {
	UserID    uint
	SessionID string
}

// Authenticated reports whether the viewer is logged in.
func (v Viewer) Authenticated() bool {
	return v.UserID != 0
}

// ProjectUser returns a copy of user as seen by viewerID.
// A user's email is only visible to that user.
func ProjectUser(user *models.User, viewerID uint) *models.User {
	if user == nil {
		return nil
	}
	projected := *user
	projected.Password = ""
	projected.Posts = nil
	if viewerID == 0 || viewerID != user.ID {
		projected.Email = ""
	}
	return &projected
}
