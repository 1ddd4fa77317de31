// Package auth registers users, verifies credentials and manages the
// server-side sessions that authenticate API requests.
//
// A session is identified by an opaque random token handed to the client in a
// cookie. Only the SHA-256 of the token is stored, together with the owning
// user, a per-session CSRF token and an absolute expiry.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dotproduct/internal/cache"
	"dotproduct/internal/core"
	"dotproduct/internal/log"
)

const (
	tokenBytes = 32

	// bcrypt only hashes the first 72 bytes and refuses longer input.
	maxPasswordBytes = 72

	defaultIdentityCacheSize = 1024
)

var (
	errMissingRegistration = core.NewValidationError("", "Username, email, and password are required")
	errUsernameTaken       = core.NewValidationError("", "Username already exists")
	errEmailTaken          = core.NewValidationError("", "Email already exists")
	errPasswordTooLong     = core.NewValidationError("password", "Ensure this field has no more than 72 bytes.")

	errMissingCredentials = &core.AuthError{Message: "Username and password are required", MissingCredentials: true}
	errInvalidCredentials = &core.AuthError{Message: "Invalid credentials"}

	errCSRFMismatch = &core.CSRFError{Reason: "CSRF token missing or incorrect."}
)

// Store is the persistence the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, u core.NewUser) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	CreateSession(ctx context.Context, s core.Session) error
	GetSession(ctx context.Context, tokenHash string) (core.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Config struct {
	SessionTTL time.Duration
	BcryptCost int

	// IdentityCacheTTL bounds how long a resolved session is reused without
	// touching the store. Zero disables the cache.
	IdentityCacheTTL  time.Duration
	IdentityCacheSize int
}

type Service struct {
	store      Store
	ttl        time.Duration
	cost       int
	dummyHash  []byte
	identities cache.Cache[Identity]
	now        func() time.Time
	logger     *log.Logger
}

// RegisterRequest carries the registration form. Names are optional.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult is returned on a successful login. Token is the raw session
// token for the cookie and is never persisted.
type LoginResult struct {
	Profile   core.Profile
	Token     string
	CSRFToken string
	ExpiresAt time.Time
}

// Identity is the authenticated caller of a request.
type Identity struct {
	User    core.User
	Session core.Session
}

func NewService(store Store, cfg Config, logger *log.Logger) (*Service, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be positive, got %v", cfg.SessionTTL)
	}
	// Compared against when the username is unknown so both failure paths cost one bcrypt.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dotproduct-login-timing"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}
	svc := &Service{
		store:     store,
		ttl:       cfg.SessionTTL,
		cost:      cfg.BcryptCost,
		dummyHash: dummy,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentAuth),
	}
	if cfg.IdentityCacheTTL > 0 {
		if cfg.IdentityCacheSize <= 0 {
			cfg.IdentityCacheSize = defaultIdentityCacheSize
		}
		svc.identities = cache.NewLRU[Identity](cfg.IdentityCacheSize, cfg.IdentityCacheTTL)
	}
	return svc, nil
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (core.Profile, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return core.Profile{}, errMissingRegistration
	}
	if len(req.Password) > maxPasswordBytes {
		return core.Profile{}, errPasswordTooLong
	}

	taken, err := s.store.UsernameExists(ctx, req.Username)
	if err != nil {
		return core.Profile{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return core.Profile{}, errUsernameTaken
	}
	taken, err = s.store.EmailExists(ctx, req.Email)
	if err != nil {
		return core.Profile{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return core.Profile{}, errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return core.Profile{}, errPasswordTooLong
		}
		return core.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, core.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, core.ErrDuplicate) {
			if strings.HasSuffix(err.Error(), "email") {
				return core.Profile{}, errEmailTaken
			}
			return core.Profile{}, errUsernameTaken
		}
		return core.Profile{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID, log.FieldOperation, log.OpRegister)
	return user.Profile(), nil
}

// Login verifies the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if username == "" || password == "" {
		return LoginResult{}, errMissingCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("load user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.WarnContext(ctx, "Login rejected", log.FieldOperation, log.OpLogin, log.FieldErrorType, log.ErrorTypeAuth)
		return LoginResult{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login rejected", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return LoginResult{}, errInvalidCredentials
	}

	token, err := randomToken()
	if err != nil {
		return LoginResult{}, err
	}
	csrf, err := randomToken()
	if err != nil {
		return LoginResult{}, err
	}

	now := s.now().UTC()
	session := core.Session{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		CSRFToken: csrf,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, user.ID, log.FieldOperation, log.OpLogin)
	return LoginResult{
		Profile:   user.Profile(),
		Token:     token,
		CSRFToken: csrf,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Authenticate resolves a raw session token to its user. Unknown and expired
// tokens yield a *core.PermissionError; expired sessions are removed.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &core.PermissionError{}
	}
	hash := HashToken(token)
	if s.identities != nil {
		if id, ok := s.identities.Get(hash); ok {
			if !id.Session.Expired(s.now()) {
				return id, nil
			}
			s.identities.Delete(hash)
		}
	}

	session, err := s.store.GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Identity{}, &core.PermissionError{}
		}
		return Identity{}, fmt.Errorf("load session: %w", err)
	}
	if session.Expired(s.now()) {
		if err := s.store.DeleteSession(ctx, hash); err != nil {
			s.logger.WarnContext(ctx, "Failed to drop expired session", log.FieldError, err)
		}
		return Identity{}, &core.PermissionError{}
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Identity{}, &core.PermissionError{}
		}
		return Identity{}, fmt.Errorf("load session user: %w", err)
	}
	id := Identity{User: user, Session: session}
	if s.identities != nil {
		s.identities.Set(hash, id)
	}
	return id, nil
}

// Logout ends the session identified by token.
func (s *Service) Logout(ctx context.Context, token string) error {
	hash := HashToken(token)
	if s.identities != nil {
		s.identities.Delete(hash)
	}
	if err := s.store.DeleteSession(ctx, hash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged out", log.FieldOperation, log.OpLogout)
	return nil
}

// VerifyCSRF checks the header value presented with an unsafe request
// against the session's token.
func VerifyCSRF(session core.Session, presented string) error {
	if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(session.CSRFToken)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

// PurgeExpired deletes every expired session.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if s.identities != nil {
		s.identities.CleanExpired()
	}
	n, err := s.store.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	logger := s.logger.WithComponent(log.ComponentJanitor)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Session janitor started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Session janitor stopped")
			return nil
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("Session purge failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Info("Expired sessions purged", "count", n)
			}
		}
	}
}

// HashToken returns the storage key for a raw session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
