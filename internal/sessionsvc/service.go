// Package sessionsvc issues, validates, rotates and revokes the signed
// session tokens backing the console's cookie-based authentication.
package sessionsvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adminconsole.org/internal/authz"
	"adminconsole.org/internal/directory"
	"adminconsole.org/internal/ids"
)

const (
	defaultIssuer     = "console"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidCredentials covers unknown accounts, wrong passwords and
	// inactive accounts alike, so login failures are indistinguishable.
	ErrInvalidCredentials = errors.New("sessionsvc: invalid credentials")
	// ErrInvalidToken indicates the token failed validation or was revoked.
	ErrInvalidToken = errors.New("sessionsvc: invalid token")
)

// Claims are the JWT claims carried by session cookies. The full user
// projection rides along so /auth/me needs no directory round trip.
type Claims struct {
	TokenType string     `json:"token_type"`
	User      authz.User `json:"user"`
	jwt.RegisteredClaims
}

// IssuedTokens holds a freshly signed credential pair.
type IssuedTokens struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service signs and verifies session tokens against the users directory.
type Service struct {
	dir        directory.Store
	revoked    RevocationStore
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given directory and revocation store.
func NewService(dir directory.Store, revoked RevocationStore, secret string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("sessionsvc: signing secret is required")
	}
	svc := &Service{
		dir:        dir,
		revoked:    revoked,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AccessTTL exposes the configured access lifetime for cookie max-age.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the configured refresh lifetime for cookie max-age.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// Login validates credentials against the directory and issues a fresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (authz.User, IssuedTokens, error) {
	email = directory.NormalizeEmail(email)
	if email == "" || password == "" {
		return authz.User{}, IssuedTokens{}, ErrInvalidCredentials
	}
	record, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		return authz.User{}, IssuedTokens{}, ErrInvalidCredentials
	}
	if !record.IsActive {
		return authz.User{}, IssuedTokens{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(record.PasswordHash, password); err != nil {
		return authz.User{}, IssuedTokens{}, ErrInvalidCredentials
	}

	user := record.AuthUser()
	pair, err := s.issuePair(user)
	if err != nil {
		return authz.User{}, IssuedTokens{}, err
	}
	return user, pair, nil
}

// Authenticate verifies an access token and returns the embedded user.
func (s *Service) Authenticate(_ context.Context, token string) (authz.User, error) {
	claims, err := s.verify(token, tokenTypeAccess)
	if err != nil {
		return authz.User{}, ErrInvalidToken
	}
	return claims.User, nil
}

// Refresh validates a refresh token and reissues only the access credential.
// The refresh credential stays valid until logout or expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (authz.User, string, time.Time, error) {
	claims, err := s.verify(refreshToken, tokenTypeRefresh)
	if err != nil {
		return authz.User{}, "", time.Time{}, ErrInvalidToken
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil || revoked {
		return authz.User{}, "", time.Time{}, ErrInvalidToken
	}

	// Re-resolve the user so role or permission changes take effect on refresh.
	user := claims.User
	if record, err := s.dir.Find(ctx, user.ID); err == nil {
		if !record.IsActive {
			return authz.User{}, "", time.Time{}, ErrInvalidToken
		}
		user = record.AuthUser()
	}

	access, exp, err := s.sign(user, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return authz.User{}, "", time.Time{}, err
	}
	return user, access, exp, nil
}

// Logout invalidates the refresh credential. An unreadable token is treated
// as already invalid, not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verify(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}

func (s *Service) issuePair(user authz.User) (IssuedTokens, error) {
	access, accessExp, err := s.sign(user, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return IssuedTokens{}, err
	}
	refresh, refreshExp, err := s.sign(user, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return IssuedTokens{}, err
	}
	return IssuedTokens{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) sign(user authz.User, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		TokenType: tokenType,
		User:      user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *Service) verify(token, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.User.ID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
