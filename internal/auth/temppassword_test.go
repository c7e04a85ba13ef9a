package auth

import (
	"strings"
	"testing"
)

func TestGenerateTempPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		pw, err := GenerateTempPassword()
		if err != nil {
			t.Fatalf("GenerateTempPassword: %v", err)
		}
		if len(pw) != tempPasswordLength {
			t.Fatalf("length = %d, want %d", len(pw), tempPasswordLength)
		}
		for _, class := range []string{tempUpper, tempLower, tempDigits, tempSymbols} {
			if !strings.ContainsAny(pw, class) {
				t.Fatalf("password %q missing a character from %q", pw, class)
			}
		}
		if seen[pw] {
			t.Fatalf("duplicate password generated: %q", pw)
		}
		seen[pw] = true
	}
}
