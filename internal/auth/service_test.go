package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dotproduct/internal/core"
	"dotproduct/internal/log"
	"dotproduct/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc, err := NewService(repo, Config{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost}, log.New(log.DefaultConfig()))
	require.NoError(t, err)
	return svc, repo
}

func register(t *testing.T, svc *Service, username string) core.Profile {
	t.Helper()
	p, err := svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	return p
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	p, err := svc.Register(ctx, RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "s3cret-pass",
		FirstName: "Alice",
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "Alice", p.FirstName)

	stored, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	register(t, svc, "alice")

	tests := []struct {
		name string
		req  RegisterRequest
		want string
	}{
		{"missing password", RegisterRequest{Username: "bob", Email: "bob@example.com"}, "Username, email, and password are required"},
		{"missing email", RegisterRequest{Username: "bob", Password: "x"}, "Username, email, and password are required"},
		{"taken username", RegisterRequest{Username: "alice", Email: "new@example.com", Password: "x"}, "Username already exists"},
		{"taken email", RegisterRequest{Username: "carol", Email: "alice@example.com", Password: "x"}, "Email already exists"},
		{"password over 72 bytes", RegisterRequest{Username: "carol", Email: "carol@example.com", Password: strings.Repeat("p", 73)}, "password: Ensure this field has no more than 72 bytes."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Error())
		})
	}

	exists, err := repo.UsernameExists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, exists, "rejected registration must not create a user")
}

func TestRegisterAcceptsSeventyTwoBytePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	password := strings.Repeat("p", 72)
	_, err := svc.Register(ctx, RegisterRequest{Username: "dave", Email: "dave@example.com", Password: password})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "dave", password)
	require.NoError(t, err)
}

func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := register(t, svc, "alice")

	res, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.Profile.ID)
	assert.Len(t, res.Token, 2*tokenBytes)
	assert.NotEmpty(t, res.CSRFToken)
	assert.NotEqual(t, res.Token, res.CSRFToken)

	id, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id.User.ID)
	assert.Equal(t, res.CSRFToken, id.Session.CSRFToken)

	assert.NoError(t, VerifyCSRF(id.Session, res.CSRFToken))
	var csrfErr *core.CSRFError
	assert.ErrorAs(t, VerifyCSRF(id.Session, ""), &csrfErr)
	assert.ErrorAs(t, VerifyCSRF(id.Session, "wrong"), &csrfErr)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, "alice")

	var authErr *core.AuthError

	_, err := svc.Login(ctx, "", "s3cret-pass")
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.MissingCredentials)
	assert.Equal(t, "Username and password are required", authErr.Message)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorAs(t, err, &authErr)
	assert.False(t, authErr.MissingCredentials)
	assert.Equal(t, "Invalid credentials", authErr.Message)

	_, err = svc.Login(ctx, "nobody", "s3cret-pass")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid credentials", authErr.Message)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed logins must not create sessions")
}

func TestAuthenticateRejectsUnknownAndExpired(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	register(t, svc, "alice")

	var permErr *core.PermissionError
	_, err := svc.Authenticate(ctx, "")
	assert.ErrorAs(t, err, &permErr)
	_, err = svc.Authenticate(ctx, "not-a-session")
	assert.ErrorAs(t, err, &permErr)

	res, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorAs(t, err, &permErr)

	_, err = repo.GetSession(ctx, HashToken(res.Token))
	assert.ErrorIs(t, err, core.ErrNotFound, "expired session should be dropped on use")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, "alice")

	res, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, res.Token))

	var permErr *core.PermissionError
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorAs(t, err, &permErr)
}

func TestPurgeExpiredAndJanitor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	register(t, svc, "alice")

	_, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	jctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.RunJanitor(jctx, 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancellation")
	}
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestIdentityCache(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc, err := NewService(repo, Config{
		SessionTTL:       time.Hour,
		BcryptCost:       bcrypt.MinCost,
		IdentityCacheTTL: time.Minute,
	}, log.New(log.DefaultConfig()))
	require.NoError(t, err)
	register(t, svc, "alice")

	res, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	first, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.identities.Len())

	// Served from the cache without a store round trip.
	require.NoError(t, repo.DeleteSession(ctx, HashToken(res.Token)))
	again, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, again.User.ID)

	// Session expiry still applies to cached identities.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	var permErr *core.PermissionError
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorAs(t, err, &permErr)
	assert.Equal(t, 0, svc.identities.Len())

	svc.now = time.Now
	res, err = svc.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, res.Token))
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorAs(t, err, &permErr)
}
