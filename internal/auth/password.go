package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is tuned so a verification takes on the order of 50ms or
// more on current hardware.
const bcryptCost = 12

// dummyHash is compared against when a login names an unknown email, so
// the failure path costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("taskhive-timing-pad"), bcryptCost)

// HashPassword hashes a plaintext credential using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext credential with a stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
