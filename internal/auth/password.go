package auth

import (
	"taskflow/internal/apperror"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.Validation("Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperror.Validation("Password must be at most 72 bytes")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
