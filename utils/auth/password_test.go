package auth

import (
	"errors"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash equals plaintext")
	}

	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("VerifyPassword with the right password: %v", err)
	}

	err = VerifyPassword(hash, "wrong password!")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashPasswordRejectsShortPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected an error for a short password")
	}
	if err := ValidatePassword("1234567"); err == nil {
		t.Fatal("expected an error for a 7 character password")
	}
	if err := ValidatePassword("12345678"); err != nil {
		t.Fatalf("8 characters should be accepted, got %v", err)
	}
}
