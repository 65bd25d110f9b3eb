package server

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/service"
	"forum/internal/session"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// viewerFrom builds the request-scoped viewer from the locals set by SessionLoader.
func viewerFrom(c *fiber.Ctx) service.Viewer {
	var v service.Viewer
	if uid, ok := c.Locals("userID").(uint); ok {
		v.UserID = uid
	}
	if sid, ok := c.Locals("sessionID").(string); ok {
		v.SessionID = sid
	}
	return v
}

// statusFor maps an application error to an HTTP status.
// Form-level not-found errors (with field details) are client errors, not missing resources.
func statusFor(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation, models.CodeTokenExpired, models.CodeUserGone:
		return fiber.StatusBadRequest
	case models.CodeDuplicateUser:
		return fiber.StatusConflict
	case models.CodeNotFound:
		if len(appErr.Fields) > 0 {
			return fiber.StatusBadRequest
		}
		return fiber.StatusNotFound
	case models.CodeInvalidCredentials, models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with the status statusFor picks. Server-side failures are
// logged and replaced by a generic internal error.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"path", c.Path(), "error", err)
		if !models.HasCode(err, models.CodeInternal) {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// issueSession replaces the session the request arrived with by sess, so a login or
// password change leaves at most one live session for this browser.
func (s *Server) issueSession(c *fiber.Ctx, sess *session.Session) {
	if prev := viewerFrom(c); prev.SessionID != "" && prev.SessionID != sess.ID {
		// failures are logged by Logout; the old session then lapses with its TTL
		_ = s.authService.Logout(c.UserContext(), prev)
	}
	s.setSessionCookie(c, sess)
}

// setSessionCookie hands the session ID to the browser. encryptcookie encrypts the value.
func (s *Server) setSessionCookie(c *fiber.Ctx, sess *session.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.config.SessionTTL / time.Second),
		Expires:  time.Now().Add(s.config.SessionTTL),
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
