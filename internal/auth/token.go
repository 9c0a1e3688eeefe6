// Package auth verifies the bearer tokens issued by the account service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserKey is where the HTTP layer stores the verified user id.
const ContextUserKey = "user_id"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carries the user id in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a verifier for HS256 tokens. An empty issuer accepts
// any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) Verify(tokenString string) (domain.UserID, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	uid := domain.UserID(claims.Subject)
	if !uid.Valid() {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return uid, nil
}

// Issue signs a token for user. Account service owns issuance in
// production; this is for local tooling and tests.
func (v *Verifier) Issue(user domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
