// Package auth issues and verifies account link tokens. A link token
// proves that whoever presents it controls a LINE account, so the web
// dashboard and the developer console can act on that user's ledger.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// LinkTokenDuration is how long a link token stays valid.
const LinkTokenDuration = 15 * time.Minute

const keyInfo = "lineledger link token v1"

// JWTManager handles link token generation and validation.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// LinkClaims are the claims of a link token.
type LinkClaims struct {
	UserID     string `json:"user_id"`
	LineUserID string `json:"line_user_id"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager with the given key and token duration.
func NewJWTManager(secretKey []byte, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     secretKey,
		tokenDuration: tokenDuration,
	}
}

// DeriveKey derives a 32-byte signing key from the channel secret with
// HKDF-SHA256, for deployments without a dedicated link token secret.
func DeriveKey(channelSecret string) ([]byte, error) {
	if channelSecret == "" {
		return nil, errors.New("empty channel secret")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(channelSecret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Issue creates a signed link token for the user.
func (m *JWTManager) Issue(userID, lineUserID string) (string, error) {
	now := time.Now()
	claims := &LinkClaims{
		UserID:     userID,
		LineUserID: lineUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   lineUserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses and validates a link token, returning the claims if valid.
func (m *JWTManager) Validate(tokenString string) (*LinkClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&LinkClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*LinkClaims)
	if !ok || !token.Valid || claims.LineUserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
