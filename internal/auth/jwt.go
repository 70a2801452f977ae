package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const purposePasswordReset = "password_reset"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid claims")
)

// TokenManager signs and verifies HS256 session and password reset tokens.
type TokenManager struct {
	secret      []byte
	expiry      time.Duration
	resetExpiry time.Duration
}

func NewTokenManager(secret string, expiry, resetExpiry time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiry: expiry, resetExpiry: resetExpiry}
}

func (m *TokenManager) GenerateToken(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(m.expiry).Unix(),
	}
	return m.sign(claims)
}

// ParseToken returns the user id of a valid session token. Reset tokens are rejected.
func (m *TokenManager) ParseToken(tokenStr string) (uuid.UUID, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return uuid.Nil, err
	}
	if _, ok := claims["purpose"]; ok {
		return uuid.Nil, ErrInvalidClaims
	}
	return userIDFrom(claims)
}

// GenerateResetToken issues a short-lived token that only authorizes a password change.
// The token carries a fingerprint of passwordHash, so it stops working once the
// password changes.
func (m *TokenManager) GenerateResetToken(userID uuid.UUID, passwordHash string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"purpose": purposePasswordReset,
		"pwd":     PasswordFingerprint(passwordHash),
		"exp":     time.Now().Add(m.resetExpiry).Unix(),
	}
	return m.sign(claims)
}

// ParseResetToken returns the user id and password fingerprint of a valid reset token.
func (m *TokenManager) ParseResetToken(tokenStr string) (uuid.UUID, string, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return uuid.Nil, "", err
	}
	if claims["purpose"] != purposePasswordReset {
		return uuid.Nil, "", ErrInvalidClaims
	}
	fingerprint, ok := claims["pwd"].(string)
	if !ok || fingerprint == "" {
		return uuid.Nil, "", ErrInvalidClaims
	}
	id, err := userIDFrom(claims)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, fingerprint, nil
}

// PasswordFingerprint is a short digest of a stored password hash.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

// MatchesPassword reports whether fingerprint was taken from passwordHash.
func MatchesPassword(fingerprint, passwordHash string) bool {
	return subtle.ConstantTimeCompare([]byte(fingerprint), []byte(PasswordFingerprint(passwordHash))) == 1
}

func (m *TokenManager) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func userIDFrom(claims jwt.MapClaims) (uuid.UUID, error) {
	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidClaims
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return id, nil
}
