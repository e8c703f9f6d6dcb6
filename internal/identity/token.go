package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/provenant-id/provenant/pkg/ethid"
)

// SessionClaims are the JWT claims for a registry session token. The subject
// is the caller's address; the ledger's authorisation rules are applied on
// top of it per operation.
type SessionClaims struct {
	jwt.RegisteredClaims
	Address string `json:"address"`
}

// SessionIssuer issues and verifies session tokens signed with RS256.
type SessionIssuer struct {
	key    *rsa.PrivateKey
	pub    *rsa.PublicKey
	issuer string
	ttl    time.Duration
}

// NewSessionIssuer creates a SessionIssuer.
//
//	issuerURL — the "iss" claim value; typically the registry's base URL.
//	ttl       — token lifetime (default: 1 hour).
func NewSessionIssuer(key *rsa.PrivateKey, issuerURL string, ttl time.Duration) *SessionIssuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &SessionIssuer{
		key:    key,
		pub:    &key.PublicKey,
		issuer: issuerURL,
		ttl:    ttl,
	}
}

// Issue creates a signed session token for addr.
func (s *SessionIssuer) Issue(addr ethid.Address) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   addr.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
		Address: addr.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning the caller address.
func (s *SessionIssuer) Verify(tokenStr string) (ethid.Address, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.pub, nil
		},
	)
	if err != nil {
		return ethid.Address{}, fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return ethid.Address{}, fmt.Errorf("invalid session token")
	}
	return ethid.ParseAddress(claims.Address)
}
