package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	tempPasswordLength = 16

	tempUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempLower   = "abcdefghijkmnpqrstuvwxyz"
	tempDigits  = "23456789"
	tempSymbols = "!@#$%&*+-="
)

var tempAlphabet = tempUpper + tempLower + tempDigits + tempSymbols

// GenerateTempPassword returns a random temporary credential for a newly
// added user. Drawn from crypto/rand; at least one character from each
// class so downstream password rules can't reject it. The plaintext is
// handed out exactly once and only its hash is stored.
func GenerateTempPassword() (string, error) {
	buf := make([]byte, 0, tempPasswordLength)
	for _, class := range []string{tempUpper, tempLower, tempDigits, tempSymbols} {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < tempPasswordLength {
		c, err := randomChar(tempAlphabet)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	if err := shuffle(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("generate credential: %w", err)
	}
	return alphabet[n.Int64()], nil
}

func shuffle(buf []byte) error {
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("generate credential: %w", err)
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}
	return nil
}
