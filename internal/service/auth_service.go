package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"forum/internal/mail"
	"forum/internal/middleware"
	"forum/internal/models"
	"forum/internal/observability"
	"forum/internal/repository"
	"forum/internal/session"
	"forum/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Messages for authentication field errors.
const (
	MsgUnknownUser       = "That username or email doesn't exist"
	MsgIncorrectPassword = "Incorrect password"
	MsgTokenExpired      = "Token expired"
	MsgUserGone          = "User no longer exists"
)

// AuthConfig carries the settings AuthService needs from the application config.
type AuthConfig struct {
	ResetTokenTTL    time.Duration
	ResetLinkBaseURL string
	MailFrom         string
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int
}

// AuthResult is a logged-in user and the session that was started for them.
type AuthResult struct {
	User    *models.User
	Session *session.Session
}

type AuthService struct {
	users    repository.UserRepository
	sessions session.Store
	tokens   repository.ResetTokenStore
	mailer   mail.Sender
	cfg      AuthConfig
}

func NewAuthService(
	users repository.UserRepository,
	sessions session.Store,
	tokens repository.ResetTokenStore,
	mailer mail.Sender,
	cfg AuthConfig,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, in validation.RegisterInput) (*AuthResult, error) {
	span, ctx := observability.StartSpan(ctx, "auth", "register")
	defer span.End()

	if errs := validation.ValidateRegister(in); len(errs) > 0 {
		return nil, models.NewFieldErrors(errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		observability.RecordAuthEvent("register", err)
		span.SetError(err)
		return nil, err
	}

	res, err := s.startSession(ctx, user)
	observability.RecordAuthEvent("register", err)
	return res, err
}

func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*AuthResult, error) {
	span, ctx := observability.StartSpan(ctx, "auth", "login")
	defer span.End()

	var (
		user *models.User
		err  error
	)
	if strings.Contains(usernameOrEmail, "@") {
		user, err = s.users.GetByEmail(ctx, usernameOrEmail)
	} else {
		user, err = s.users.GetByUsername(ctx, usernameOrEmail)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if user == nil {
		err := models.NewFieldError(models.CodeNotFound, "usernameOrEmail", MsgUnknownUser)
		observability.RecordAuthEvent("login", err)
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		appErr := models.NewFieldError(models.CodeInvalidCredentials, "password", MsgIncorrectPassword)
		observability.RecordAuthEvent("login", appErr)
		return nil, appErr
	}

	res, err := s.startSession(ctx, user)
	observability.RecordAuthEvent("login", err)
	return res, err
}

// Logout destroys the viewer's session. It reports false only when the session store failed.
func (s *AuthService) Logout(ctx context.Context, viewer Viewer) bool {
	if viewer.SessionID == "" {
		return true
	}
	if err := s.sessions.Destroy(ctx, viewer.SessionID); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to destroy session", slog.String("error", err.Error()))
		observability.RecordAuthEvent("logout", err)
		return false
	}
	observability.SessionsActive.Dec()
	observability.RecordAuthEvent("logout", nil)
	return true
}

// Me returns the viewer's own account, or nil when the viewer is anonymous or the account is gone.
func (s *AuthService) Me(ctx context.Context, viewer Viewer) (*models.User, error) {
	if !viewer.Authenticated() {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, viewer.UserID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ProjectUser(user, viewer.UserID), nil
}

// ForgotPassword emails a reset link when email belongs to an account.
// It returns true either way so callers cannot probe which emails are registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (bool, error) {
	span, ctx := observability.StartSpan(ctx, "auth", "forgot_password")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		span.SetError(err)
		return false, err
	}
	if user == nil {
		return true, nil
	}

	token := uuid.NewString()
	if err := s.tokens.Save(ctx, token, user.ID, s.cfg.ResetTokenTTL); err != nil {
		span.SetError(err)
		return false, models.NewInternalError(err)
	}

	msg := mail.ResetPasswordMessage(s.cfg.MailFrom, user.Email, s.cfg.ResetLinkBaseURL+token)
	if err := s.mailer.Send(ctx, msg); err != nil {
		span.SetError(err)
		return false, models.NewInternalError(err)
	}

	observability.RecordAuthEvent("forgot_password", nil)
	return true, nil
}

// ChangePassword consumes a reset token, stores the new password and logs the user in.
func (s *AuthService) ChangePassword(ctx context.Context, token, newPassword string) (*AuthResult, error) {
	span, ctx := observability.StartSpan(ctx, "auth", "change_password")
	defer span.End()

	if fe := validation.ValidatePassword("newPassword", newPassword); fe != nil {
		return nil, models.NewFieldErrors([]models.FieldError{*fe})
	}

	userID, found, err := s.tokens.Lookup(ctx, token)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	if !found {
		return nil, models.NewFieldError(models.CodeTokenExpired, "token", MsgTokenExpired)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewFieldError(models.CodeUserGone, "token", MsgUserGone)
		}
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// Only the request that removes the token may change the password.
	claimedID, claimed, err := s.tokens.Claim(ctx, token)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	if !claimed || claimedID != user.ID {
		return nil, models.NewFieldError(models.CodeTokenExpired, "token", MsgTokenExpired)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewFieldError(models.CodeUserGone, "token", MsgUserGone)
		}
		return nil, err
	}

	res, err := s.startSession(ctx, user)
	observability.RecordAuthEvent("change_password", err)
	return res, err
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to start session",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()),
		)
		return nil, models.NewInternalError(fmt.Errorf("start session: %w", err))
	}
	observability.SessionsActive.Inc()
	return &AuthResult{
		User:    ProjectUser(user, user.ID),
		Session: sess,
	}, nil
}
