package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetUser handles GET /api/users/:id
// Email is only present when the viewer is looking at their own account.
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.UserContext(), viewerFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
