// Package service contains application services: accounts, sessions, the usage gate and history.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/maazshahbaz/ai-humanizer/internal/crypto"
	"github.com/maazshahbaz/ai-humanizer/internal/errs"
	"github.com/maazshahbaz/ai-humanizer/internal/limiter"
	"github.com/maazshahbaz/ai-humanizer/internal/model"
	"github.com/maazshahbaz/ai-humanizer/internal/repository"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// AuthService defines account and token operations.
type AuthService interface {
	// Register creates an account, seeds credits and adopts the guest's history.
	Register(ctx context.Context, email, password, guestID string) (RegisterResult, error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// ParseAccessToken verifies a bearer token and returns its subject and expiry.
	ParseAccessToken(ctx context.Context, token string) (uuid.UUID, time.Time, error)
	// Logout revokes token until it expires.
	Logout(ctx context.Context, token string, expiresAt time.Time) error
	// DeleteAccount removes the user and everything owned by it.
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

// TokenRevoker stores revoked access tokens.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RegisterResult is returned by a successful sign-up.
type RegisterResult struct {
	User     model.User
	Tokens   model.Tokens
	Imported int // guest records adopted by the new account
}

// AuthDeps groups the collaborators of AuthServiceImpl.
type AuthDeps struct {
	Users    repository.UserRepository
	Rewrites repository.RewriteRepository
	Guests   repository.GuestStore
	Limiter  limiter.Limiter
	Revoker  TokenRevoker // optional
	Hasher   pkgcrypto.Hasher
	Log      *zap.Logger
}

type AuthServiceImpl struct {
	AuthDeps
	signKey   []byte
	accessTTL time.Duration
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(deps AuthDeps, signKey []byte, accessTTL time.Duration) *AuthServiceImpl {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &AuthServiceImpl{AuthDeps: deps, signKey: signKey, accessTTL: accessTTL}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errs.Validation("invalid email")
	}
	return email, nil
}

// Register creates a user with SignupCredits and migrates guest records when guestID is set.
// A failed migration is logged; the guest data stays in place and the account is still created.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password, guestID string) (RegisterResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return RegisterResult{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return RegisterResult{}, errs.Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return RegisterResult{}, err
	}
	hash, salt, err := s.Hasher.New([]byte(password))
	if err != nil {
		return RegisterResult{}, err
	}
	u := model.User{ID: uid, Email: email, PwdHash: hash, SaltAuth: salt, CreatedAt: time.Now().UTC()}
	if err := s.Users.Create(ctx, &u, model.SignupCredits); err != nil {
		return RegisterResult{}, err
	}

	res := RegisterResult{User: u}
	if guestID != "" {
		res.Imported = s.adoptGuest(ctx, uid, guestID)
	}

	access, exp, err := s.issueAccessToken(uid)
	if err != nil {
		return RegisterResult{}, err
	}
	res.Tokens = model.Tokens{AccessToken: access, ExpiresAt: exp}
	return res, nil
}

// adoptGuest copies guest history into the new account, then clears the guest state.
func (s *AuthServiceImpl) adoptGuest(ctx context.Context, userID uuid.UUID, guestID string) int {
	log := s.Log.With(zap.String("user_id", userID.String()), zap.String("guest_id", guestID))

	recs, err := s.Guests.History(ctx, guestID)
	if err != nil {
		log.Warn("read guest history", zap.Error(err))
		return 0
	}
	n, err := s.Rewrites.Import(ctx, userID, recs)
	if err != nil {
		log.Warn("import guest history", zap.Error(err))
		return 0
	}
	if err := s.Guests.Clear(ctx, guestID); err != nil {
		log.Warn("clear guest state", zap.Error(err))
	}
	log.Info("guest history imported", zap.Int("records", n))
	return n
}

// LoginWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.Limiter.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil || !s.Hasher.Verify([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.Limiter.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same to the caller
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	// best-effort
	_ = s.Limiter.Success(ctx, email, ipHash)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	id, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	claims := jwt.RegisteredClaims{
		ID:        id.String(),
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// ParseAccessToken verifies HS256 signature and time claims (30s leeway) and checks revocation.
func (s *AuthServiceImpl) ParseAccessToken(ctx context.Context, token string) (uuid.UUID, time.Time, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}

	if s.Revoker != nil {
		revoked, err := s.Revoker.IsRevoked(ctx, token)
		if err != nil {
			return uuid.Nil, time.Time{}, err
		}
		if revoked {
			return uuid.Nil, time.Time{}, fmt.Errorf("%w: token revoked", errs.ErrUnauthorized)
		}
	}
	return id, claims.ExpiresAt.Time, nil
}

// Logout revokes token. Without a revoker it is a no-op; clients drop the token themselves.
func (s *AuthServiceImpl) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if s.Revoker == nil {
		return nil
	}
	return s.Revoker.Revoke(ctx, token, expiresAt)
}

// DeleteAccount removes the user; credits and rewrites cascade in the database.
func (s *AuthServiceImpl) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errs.Validation("user id is required")
	}
	return s.Users.Delete(ctx, userID)
}
