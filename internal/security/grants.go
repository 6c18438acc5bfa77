package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidGrant is returned when a grant token is malformed, expired, or
// signed with the wrong key.
var ErrInvalidGrant = errors.New("invalid grant")

// GrantClaims holds JWT claims for a tracking-session grant. The grant is
// scoped to one browser session and one order's public code; it is never a
// substitute for re-verifying a different order.
type GrantClaims struct {
	jwt.RegisteredClaims
	OrderCode string `json:"order_code"`
	SessionID string `json:"session_id"`
}

// GrantProvider issues and validates signed session grants (RS256 or ES256).
// A grant records that the authentication gate already accepted an access key
// for (session, order); it replaces the old process-wide session map.
type GrantProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewGrantProvider returns a GrantProvider that signs with the given private
// key. issuer and audience are set on claims and checked on validation.
func NewGrantProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *GrantProvider {
	return &GrantProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// Issue signs a grant for the given session and order code. Returns the token
// string and its expiration time.
func (p *GrantProvider) Issue(sessionID, orderCode string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.ttl)
	claims := GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderCode,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OrderCode: orderCode,
		SessionID: sessionID,
	}
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidGrant
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses and validates a grant token (signature, exp, iss, aud).
// Returns the sessionID and orderCode it is scoped to.
func (p *GrantProvider) Validate(tokenString string) (sessionID, orderCode string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &GrantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidGrant
	})
	if err != nil {
		return "", "", ErrInvalidGrant
	}
	claims, ok := token.Claims.(*GrantClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidGrant
	}
	if claims.Issuer != p.issuer {
		return "", "", ErrInvalidGrant
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", "", ErrInvalidGrant
	}
	return claims.SessionID, claims.OrderCode, nil
}
