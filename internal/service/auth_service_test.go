package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"forum/internal/models"
	"forum/internal/session"
	"forum/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func register(t *testing.T, env *testEnv, username string) *AuthResult {
	t.Helper()
	res, err := env.auth.Register(context.Background(), validation.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
	return res
}

func TestAuthService_RegisterCreatesOneUserAndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := register(t, env, "ann")

	assert.Equal(t, int64(1), env.countUsers(t))
	require.NotNil(t, res.Session)
	sess, err := env.sessions.Get(ctx, res.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, res.User.ID, sess.UserID)

	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.Empty(t, res.User.Password)

	var stored models.User
	require.NoError(t, env.db.First(&stored, res.User.ID).Error)
	assert.NotEqual(t, "hunter2", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("hunter2")))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Register(context.Background(), validation.RegisterInput{
		Username: "ann", Email: "not-an-email", Password: "hunter2",
	})
	assertFieldError(t, err, models.CodeValidation, "email", validation.MsgInvalidEmail)
	assert.Zero(t, env.countUsers(t))
}

func TestAuthService_RegisterRejectsPasswordsBcryptCannotHash(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Register(context.Background(), validation.RegisterInput{
		Username: "ann", Email: "ann@example.com", Password: strings.Repeat("p", 80),
	})
	assertFieldError(t, err, models.CodeValidation, "password", validation.MsgPasswordTooLong)
	assert.Zero(t, env.countUsers(t))

	res, err := env.auth.Register(context.Background(), validation.RegisterInput{
		Username: "ann", Email: "ann@example.com", Password: strings.Repeat("p", validation.MaxPasswordBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.countUsers(t))
	assert.NotNil(t, res.Session)
}

func TestAuthService_RegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	register(t, env, "ann")

	_, err := env.auth.Register(context.Background(), validation.RegisterInput{
		Username: "ann", Email: "second@example.com", Password: "hunter2",
	})
	assertFieldError(t, err, models.CodeDuplicateUser, "username", "username already taken")
	assert.Equal(t, int64(1), env.countUsers(t))
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	created := register(t, env, "ann")
	ctx := context.Background()

	byEmail, err := env.auth.Login(ctx, "ann@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, byEmail.User.ID)

	byName, err := env.auth.Login(ctx, "ann", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, byName.User.ID)
	assert.NotEqual(t, byEmail.Session.ID, byName.Session.ID)

	_, err = env.auth.Login(ctx, "ann", "wrong")
	assertFieldError(t, err, models.CodeInvalidCredentials, "password", MsgIncorrectPassword)

	_, err = env.auth.Login(ctx, "ann@example.com", "wrong")
	assertFieldError(t, err, models.CodeInvalidCredentials, "password", MsgIncorrectPassword)

	_, err = env.auth.Login(ctx, "nobody", "hunter2")
	assertFieldError(t, err, models.CodeNotFound, "usernameOrEmail", MsgUnknownUser)
}

func TestAuthService_LogoutDestroysSession(t *testing.T) {
	env := newTestEnv(t)
	res := register(t, env, "ann")
	ctx := context.Background()
	viewer := Viewer{UserID: res.User.ID, SessionID: res.Session.ID}

	assert.True(t, env.auth.Logout(ctx, viewer))
	assert.False(t, env.mr.Exists(session.Key(res.Session.ID)))

	assert.True(t, env.auth.Logout(ctx, Viewer{}))
}

func TestAuthService_LogoutReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	res := register(t, env, "ann")
	env.mr.Close()

	assert.False(t, env.auth.Logout(context.Background(), Viewer{UserID: res.User.ID, SessionID: res.Session.ID}))
}

func TestAuthService_Me(t *testing.T) {
	env := newTestEnv(t)
	ann := register(t, env, "ann")
	ctx := context.Background()

	me, err := env.auth.Me(ctx, Viewer{})
	require.NoError(t, err)
	assert.Nil(t, me)

	me, err = env.auth.Me(ctx, Viewer{UserID: ann.User.ID})
	require.NoError(t, err)
	require.NotNil(t, me)
	assert.Equal(t, "ann@example.com", me.Email)

	me, err = env.auth.Me(ctx, Viewer{UserID: 9999})
	require.NoError(t, err)
	assert.Nil(t, me)
}

func TestAuthService_OtherUsersEmailIsRedacted(t *testing.T) {
	env := newTestEnv(t)
	ann := register(t, env, "ann")
	ben := register(t, env, "ben")

	users := NewUserService(env.users)
	seen, err := users.GetUser(context.Background(), Viewer{UserID: ben.User.ID}, ann.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", seen.Username)
	assert.Equal(t, "", seen.Email)
}

func TestAuthService_ForgotPassword(t *testing.T) {
	env := newTestEnv(t)
	ann := register(t, env, "ann")
	ctx := context.Background()

	ok, err := env.auth.ForgotPassword(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, env.mailer.sent)

	ok, err = env.auth.ForgotPassword(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, env.mailer.sent, 1)

	msg := env.mailer.last()
	assert.Equal(t, "ann@example.com", msg.To)
	token := tokenFromMail(t, msg.HTML)

	key := "forgot-password:" + token
	require.True(t, env.mr.Exists(key))
	assert.Equal(t, float64(259200), env.mr.TTL(key).Seconds())
	stored, err := env.mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(ann.User.ID), 10), stored)
}

func TestAuthService_ForgotPasswordMailFailure(t *testing.T) {
	env := newTestEnv(t)
	register(t, env, "ann")
	env.mailer.err = errors.New("smtp down")

	ok, err := env.auth.ForgotPassword(context.Background(), "ann@example.com")
	assert.False(t, ok)
	assertCode(t, err, models.CodeInternal)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ann := register(t, env, "ann")
	ctx := context.Background()

	_, err := env.auth.ForgotPassword(ctx, "ann@example.com")
	require.NoError(t, err)
	token := tokenFromMail(t, env.mailer.last().HTML)

	_, err = env.auth.ChangePassword(ctx, token, "no")
	assertFieldError(t, err, models.CodeValidation, "newPassword", validation.MsgPasswordTooShort)

	_, err = env.auth.ChangePassword(ctx, token, strings.Repeat("p", 80))
	assertFieldError(t, err, models.CodeValidation, "newPassword", validation.MsgPasswordTooLong)

	res, err := env.auth.ChangePassword(ctx, token, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, ann.User.ID, res.User.ID)
	require.NotNil(t, res.Session)
	assert.True(t, env.mr.Exists(session.Key(res.Session.ID)))

	_, err = env.auth.Login(ctx, "ann", "correct horse")
	require.NoError(t, err)
	_, err = env.auth.Login(ctx, "ann", "hunter2")
	assertFieldError(t, err, models.CodeInvalidCredentials, "password", MsgIncorrectPassword)

	_, err = env.auth.ChangePassword(ctx, token, "another one")
	assertFieldError(t, err, models.CodeTokenExpired, "token", MsgTokenExpired)
}

func TestAuthService_ChangePasswordTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	register(t, env, "ann")
	ctx := context.Background()

	_, err := env.auth.ForgotPassword(ctx, "ann@example.com")
	require.NoError(t, err)
	token := tokenFromMail(t, env.mailer.last().HTML)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		expired   int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.auth.ChangePassword(ctx, token, "new password "+strconv.Itoa(i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case models.HasCode(err, models.CodeTokenExpired):
				expired++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, expired)
	assert.False(t, env.mr.Exists("forgot-password:"+token))
}

func TestAuthService_ChangePasswordUserGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tokens.Save(ctx, "orphan", 4242, 0))

	_, err := env.auth.ChangePassword(ctx, "orphan", "correct horse")
	assertFieldError(t, err, models.CodeUserGone, "token", MsgUserGone)
}

func TestAuthService_ChangePasswordUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ChangePassword(context.Background(), "does-not-exist", "correct horse")
	assertFieldError(t, err, models.CodeTokenExpired, "token", MsgTokenExpired)
}

func tokenFromMail(t *testing.T, html string) string {
	t.Helper()
	const prefix = "http://localhost:3000/change-password/"
	start := strings.Index(html, prefix)
	require.GreaterOrEqual(t, start, 0, "reset link missing from %q", html)
	rest := html[start+len(prefix):]
	end := strings.Index(rest, `"`)
	require.Greater(t, end, 0)
	return rest[:end]
}
