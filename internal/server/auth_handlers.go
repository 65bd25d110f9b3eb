package server

import (
	"forum/internal/models"
	"forum/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req validation.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.issueSession(c, res.Session)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": res.User})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Password        string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Login(c.UserContext(), req.UsernameOrEmail, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	s.issueSession(c, res.Session)
	return c.JSON(fiber.Map{"user": res.User})
}

// Logout handles POST /api/auth/logout
// The cookie is cleared even when the session store could not be reached.
func (s *Server) Logout(c *fiber.Ctx) error {
	ok := s.authService.Logout(c.UserContext(), viewerFrom(c))
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"ok": ok})
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.authService.Me(c.UserContext(), viewerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// ForgotPassword handles POST /api/auth/forgot-password
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ok, err := s.authService.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": ok})
}

// ChangePassword handles POST /api/auth/change-password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.ChangePassword(c.UserContext(), req.Token, req.NewPassword)
	if err != nil {
		return respondError(c, err)
	}

	s.issueSession(c, res.Session)
	return c.JSON(fiber.Map{"user": res.User})
}
