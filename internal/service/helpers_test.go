package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"forum/internal/cache"
	"forum/internal/database"
	"forum/internal/mail"
	"forum/internal/models"
	"forum/internal/repository"
	"forum/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// assertFieldError asserts that err is an AppError with the given code whose first field error matches.
func assertFieldError(t *testing.T, err error, code, field, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	require.NotEmpty(t, appErr.Fields)
	assert.Equal(t, field, appErr.Fields[0].Field)
	assert.Equal(t, message, appErr.Fields[0].Message)
}

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// recordingMailer captures sent messages.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last() mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

// recordingEvents captures published events.
type recordingEvents struct {
	mu        sync.Mutex
	broadcast []string
	direct    map[uint][]string
}

func (e *recordingEvents) Broadcast(_ context.Context, eventType string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcast = append(e.broadcast, eventType)
	return nil
}

func (e *recordingEvents) NotifyUser(_ context.Context, userID uint, eventType string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.direct == nil {
		e.direct = map[uint][]string{}
	}
	e.direct[userID] = append(e.direct[userID], eventType)
	return nil
}

type testEnv struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	users    repository.UserRepository
	posts    repository.PostRepository
	votes    repository.UpvoteRepository
	sessions *session.RedisStore
	tokens   repository.ResetTokenStore
	mailer   *recordingMailer
	events   *recordingEvents
	auth     *AuthService
	post     *PostService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	env := &testEnv{
		db:       db,
		mr:       mr,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		votes:    repository.NewUpvoteRepository(db),
		sessions: session.NewRedisStore(rdb, time.Hour),
		tokens:   repository.NewResetTokenStore(rdb),
		mailer:   &recordingMailer{},
		events:   &recordingEvents{},
	}
	env.auth = NewAuthService(env.users, env.sessions, env.tokens, env.mailer, AuthConfig{
		ResetTokenTTL:    72 * time.Hour,
		ResetLinkBaseURL: "http://localhost:3000/change-password/",
		MailFrom:         "no-reply@forum.local",
		BcryptCost:       bcrypt.MinCost,
	})
	env.post = NewPostService(env.posts, env.votes, env.events)
	return env
}

func (e *testEnv) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.User{}).Count(&n).Error)
	return n
}
