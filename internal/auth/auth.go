package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or audience checks.
var ErrInvalidToken = errors.New("invalid token")

const (
	audienceAPI  = "api"
	audienceFile = "file"
)

// Token is an access token issued to a user.
type Token struct {
	Value     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are the JWT claims for access and file-link tokens.
type Claims struct {
	jwt.RegisteredClaims
	Key string `json:"key,omitempty"`
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer whose access tokens live for ttl.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return NewIssuerWithClock(secret, ttl, time.Now)
}

// NewIssuerWithClock creates an Issuer with a custom clock for testing
func NewIssuerWithClock(secret []byte, ttl time.Duration, now func() time.Time) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: now}
}

// Issue creates an access token for userID.
func (i *Issuer) Issue(userID string) (Token, error) {
	expires := i.now().Add(i.ttl)
	value, err := i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audienceAPI},
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	if err != nil {
		return Token{}, err
	}
	return Token{Value: value, UserID: userID, ExpiresAt: expires}, nil
}

// Verify checks an access token and returns its user ID.
func (i *Issuer) Verify(value string) (string, error) {
	claims, err := i.parse(value, audienceAPI)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// SignKey creates a short-lived token granting read access to one storage key.
func (i *Issuer) SignKey(key string, ttl time.Duration) (string, time.Time, error) {
	expires := i.now().Add(ttl)
	value, err := i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceFile},
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Key: key,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return value, expires, nil
}

// VerifyKey checks that value grants access to key.
func (i *Issuer) VerifyKey(value, key string) error {
	claims, err := i.parse(value, audienceFile)
	if err != nil {
		return err
	}
	if claims.Key != key {
		return fmt.Errorf("%w: key mismatch", ErrInvalidToken)
	}
	return nil
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return value, nil
}

func (i *Issuer) parse(value, audience string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type userKey struct{}

// WithUser returns a context carrying the authenticated user ID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the authenticated user ID, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}
