package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/snapgram/internal/domain"
)

// NewAccount is the sign-up payload.
type NewAccount struct {
	Name     string
	Username string
	Email    string
	Password string
}

// AuthOptions configures password hashing and session tokens.
type AuthOptions struct {
	JWTSecret  string
	BcryptCost int
	SessionTTL time.Duration
}

// AuthService handles sign-up, sign-in, sign-out and resolving the caller
// behind a session token.
type AuthService struct {
	accounts   domain.AccountRepository
	sessions   domain.SessionRepository
	users      domain.UserRepository
	saves      domain.SaveRepository
	urls       URLBuilder
	jwtSecret  []byte
	bcryptCost int
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(db domain.Database, urls URLBuilder, opts AuthOptions, logger *slog.Logger) *AuthService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		accounts:   db.Accounts(),
		sessions:   db.Sessions(),
		users:      db.Users(),
		saves:      db.Saves(),
		urls:       urls,
		jwtSecret:  []byte(opts.JWTSecret),
		bcryptCost: opts.BcryptCost,
		sessionTTL: ttl,
		logger:     logger.With("system", "auth"),
	}
}

// CreateUserAccount creates the account, then exactly one user document
// mirroring it. A failed user write leaves the account in place and is not
// retried.
func (s *AuthService) CreateUserAccount(ctx context.Context, in NewAccount) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Name == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, fail(s.logger, "create account",
			fmt.Errorf("%w: name, username, email, and password are required", domain.ErrInvalidInput))
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fail(s.logger, "create account", fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput))
	}
	if len(in.Password) < 8 {
		return nil, fail(s.logger, "create account",
			fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fail(s.logger, "create account", fmt.Errorf("hash password: %w", err))
	}

	account := &domain.Account{Email: in.Email, Name: in.Name, PasswordHash: string(hash)}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fail(s.logger, "create account", fmt.Errorf("create account: %w", err))
	}

	user := &domain.User{
		AccountID: account.ID,
		Name:      in.Name,
		Username:  in.Username,
		Email:     in.Email,
		ImageURL:  s.urls.Avatar(in.Name),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Warn("account created without user document", "account_id", account.ID)
		return nil, fail(s.logger, "create account", fmt.Errorf("create user: %w", err))
	}

	s.logger.Info("account created", "account_id", account.ID, "user_id", user.ID)
	return user, nil
}

// SignIn verifies credentials, persists a session and returns its signed token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, *domain.Session, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fail(s.logger, "sign in", domain.ErrUnauthorized)
		}
		return "", nil, fail(s.logger, "sign in", fmt.Errorf("get account: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, fail(s.logger, "sign in", domain.ErrUnauthorized)
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, fail(s.logger, "sign in", fmt.Errorf("create session: %w", err))
	}

	token, err := s.generateJWT(account, session)
	if err != nil {
		return "", nil, fail(s.logger, "sign in", fmt.Errorf("generate jwt: %w", err))
	}
	return token, session, nil
}

// SignOut revokes the session behind token.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return fail(s.logger, "sign out", err)
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fail(s.logger, "sign out", domain.ErrUnauthorized)
		}
		return fail(s.logger, "sign out", fmt.Errorf("revoke session: %w", err))
	}
	return nil
}

// CurrentAccount validates token and its session and returns the account.
func (s *AuthService) CurrentAccount(ctx context.Context, token string) (*domain.Account, error) {
	account, err := s.currentAccount(ctx, token)
	if err != nil {
		return nil, fail(s.logger, "current account", err)
	}
	return account, nil
}

// CurrentUser resolves the account behind token, then the first user whose
// AccountID matches, with its saves attached.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	account, err := s.currentAccount(ctx, token)
	if err != nil {
		return nil, fail(s.logger, "current user", err)
	}

	user, err := s.users.GetByAccountID(ctx, account.ID)
	if err != nil {
		return nil, fail(s.logger, "current user", fmt.Errorf("get user for account %s: %w", account.ID, err))
	}

	saves, err := s.saves.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fail(s.logger, "current user", fmt.Errorf("list saves: %w", err))
	}
	user.Saves = saves
	return user, nil
}

func (s *AuthService) currentAccount(ctx context.Context, token string) (*domain.Account, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.Active(time.Now()) || session.AccountID != claims.Subject {
		return nil, domain.ErrUnauthorized
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// ValidateToken checks the signature and expiry of a session token without
// reading the store. A token never outlives its session, so an expired
// session fails here too. Revocation is only seen by CurrentAccount.
func (s *AuthService) ValidateToken(token string) error {
	_, err := s.parseToken(token)
	return err
}

// parseToken checks the signature and expiry of a session token.
func (s *AuthService) parseToken(tokenString string) (*jwt.RegisteredClaims, error) {
	if tokenString == "" {
		return nil, domain.ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) generateJWT(account *domain.Account, session *domain.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   account.ID,
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
