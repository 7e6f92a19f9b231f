package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost of 12 keeps a single hash in the hundreds of milliseconds,
// slow enough to blunt offline guessing without making login sluggish.
const hashCost = 12

// MinPasswordLength is enforced at registration, before hashing.
const MinPasswordLength = 8

// ErrPasswordMismatch is returned when a login attempt does not match
// the stored hash.
var ErrPasswordMismatch = errors.New("password does not match")

// ValidatePassword checks whether a plaintext password is acceptable for
// a new account.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// HashPassword validates and bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a stored hash against a login attempt.
func VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
