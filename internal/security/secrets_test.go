package security

import (
	"regexp"
	"testing"

	"zetsuserv/internal/credential"
)

func TestGenerateVerificationCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := GenerateVerificationCode()
		if err != nil {
			t.Fatalf("GenerateVerificationCode: %v", err)
		}
		if !re.MatchString(code) {
			t.Fatalf("code = %q, want 6 digits", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("codes do not vary")
	}
}

func TestGenerateAccessKey(t *testing.T) {
	re := regexp.MustCompile(`^[0-9A-Za-z]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := GenerateAccessKey()
		if err != nil {
			t.Fatalf("GenerateAccessKey: %v", err)
		}
		if !re.MatchString(key) {
			t.Fatalf("key = %q, want 8 alphanumeric chars", key)
		}
		seen[key] = true
	}
	if len(seen) < 20 {
		t.Errorf("expected 20 distinct keys, got %d", len(seen))
	}
}

func TestSecretGenerator_Generate(t *testing.T) {
	var g SecretGenerator
	code, err := g.Generate(credential.KindVerificationCode)
	if err != nil || len(code) != 6 {
		t.Fatalf("verification code = (%q, %v)", code, err)
	}
	key, err := g.Generate(credential.KindAccessKey)
	if err != nil || len(key) != 8 {
		t.Fatalf("access key = (%q, %v)", key, err)
	}
	if _, err := g.Generate(credential.Kind("bogus")); err == nil {
		t.Fatal("unknown kind must fail")
	}
}
