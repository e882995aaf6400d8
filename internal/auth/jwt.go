// Package auth issues and validates the operator tokens that protect
// mutating submission routes. Operators exchange the configured admin
// token for a short-lived JWT.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrBadAdminToken = errors.New("admin token mismatch")
)

// Claims holds the JWT payload.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// JWTManager handles token creation and validation.
type JWTManager struct {
	secret     []byte
	adminToken string
	expiry     time.Duration
}

// NewJWTManager creates a JWTManager with the given signing secret and the
// admin token operators exchange for JWTs.
func NewJWTManager(secret, adminToken string) *JWTManager {
	return &JWTManager{
		secret:     []byte(secret),
		adminToken: adminToken,
		expiry:     12 * time.Hour,
	}
}

// Exchange validates the admin token and mints an operator JWT.
func (m *JWTManager) Exchange(adminToken, operator string) (*Token, error) {
	if m.adminToken == "" || adminToken != m.adminToken {
		return nil, ErrBadAdminToken
	}
	signed, err := m.generate(operator)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: signed,
		ExpiresIn:   int(m.expiry.Seconds()),
	}, nil
}

func (m *JWTManager) generate(operator string) (string, error) {
	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   operator,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT string, returning the claims.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Token is the response body for a successful exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}
