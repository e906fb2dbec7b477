package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const RoleAdmin = "admin"

var (
	ErrMissingToken = errors.New("authorization bearer token required")
	ErrInvalidToken = errors.New("invalid token")
)

// Session identifies the user a controller or request acts for.
type Session struct {
	UserID       string `json:"user_id"`
	Organization string `json:"organization"`
	Role         string `json:"role"`
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// CanAccessOwner reports whether s may read records owned by ownerID.
func (s Session) CanAccessOwner(ownerID string) bool {
	return s.UserID == ownerID || s.IsAdmin()
}

type Claims struct {
	UserID       string `json:"user_id"`
	Organization string `json:"organization"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(s Session) (string, error) {
	if s.UserID == "" {
		return "", errors.New("session user id is required")
	}
	now := i.now()
	claims := Claims{
		UserID:       s.UserID,
		Organization: s.Organization,
		Role:         s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) Parse(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: claims.UserID, Organization: claims.Organization, Role: claims.Role}, nil
}

// ParseHeader accepts an Authorization header value of the form "Bearer <token>".
func (i *Issuer) ParseHeader(header string) (Session, error) {
	if header == "" {
		return Session{}, ErrMissingToken
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return Session{}, ErrMissingToken
	}
	return i.Parse(strings.TrimSpace(tokenString))
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
