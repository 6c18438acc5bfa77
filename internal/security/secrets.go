package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"zetsuserv/internal/credential"
)

const (
	verificationCodeDigits = 6
	accessKeyLength        = 8
	// Letters and digits: readable enough to type from an email.
	accessKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// SecretGenerator produces human-enterable secrets from crypto/rand. Each
// character is drawn uniformly (no modulo bias): ~19.9 bits for a 6-digit
// verification code — acceptable only together with the short TTL and resend
// cooldown — and ~47.6 bits for an 8-character access key.
type SecretGenerator struct{}

// Generate returns a new plaintext secret for the given credential kind.
func (SecretGenerator) Generate(kind credential.Kind) (string, error) {
	switch kind {
	case credential.KindVerificationCode:
		return GenerateVerificationCode()
	case credential.KindAccessKey:
		return GenerateAccessKey()
	default:
		return "", fmt.Errorf("unknown credential kind %q", kind)
	}
}

// GenerateVerificationCode returns a 6-digit numeric code (e.g. "042617").
func GenerateVerificationCode() (string, error) {
	return randomString("0123456789", verificationCodeDigits)
}

// GenerateAccessKey returns an 8-character alphanumeric key.
func GenerateAccessKey() (string, error) {
	return randomString(accessKeyAlphabet, accessKeyLength)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}
