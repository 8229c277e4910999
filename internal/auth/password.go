package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// CheckPasswordStrength enforces the minimum-strength policy: configured
// minimum length plus at least one letter and one digit.
func CheckPasswordStrength(password string, minLength int) error {
	if minLength <= 0 {
		minLength = 8
	}
	if len(password) < minLength {
		return apperrors.NewWeakPassword("password too short")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apperrors.NewWeakPassword("password must contain letters and digits")
	}
	return nil
}
