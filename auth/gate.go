package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/camden-git/photogallery/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	SessionCookieName = "session"
	DefaultSessionTTL = 24 * time.Hour

	sessionSubject = "admin"
	sessionIssuer  = "photogallery"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
)

// Gate authenticates the single administrator and validates session tokens.
// Tokens are HS256 JWTs signed with SESSION_SECRET; the password is only ever compared as a bcrypt hash.
type Gate struct {
	passwordHash []byte
	signingKey   []byte
	ttl          time.Duration
	secureCookie bool
	now          func() time.Time
}

type Option func(*Gate)

// WithClock overrides time.Now for token issue and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(cfg config.AuthConfig, opts ...Option) (*Gate, error) {
	hash := []byte(cfg.AdminPasswordHash)
	if len(hash) > 0 {
		if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
	} else {
		if cfg.AdminPassword == "" {
			return nil, errors.New("admin password is not configured")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is not configured")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	g := &Gate{
		passwordHash: hash,
		signingKey:   []byte(cfg.SessionSecret),
		ttl:          ttl,
		secureCookie: cfg.CookieSecure,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Login checks the password and issues a fresh session token with its expiry.
func (g *Gate) Login(password string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	issuedAt := g.now()
	expiresAt := issuedAt.Add(g.ttl)
	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   sessionSubject,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate reports whether token is a live session issued by this gate.
func (g *Gate) Validate(token string) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return g.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithSubject(sessionSubject),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return ErrInvalidSession
	}
	return nil
}

// IsAuthorized checks the session cookie on r.
func (g *Gate) IsAuthorized(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return g.Validate(cookie.Value) == nil
}

func (g *Gate) SessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   int(g.ttl.Seconds()),
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearedCookie expires the session cookie in the browser (Max-Age=0 on the wire).
func (g *Gate) ClearedCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
