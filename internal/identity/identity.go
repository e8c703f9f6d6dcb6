// Package identity implements the registry's caller authentication layer.
//
// It provides:
//   - KeyManager      — creates/loads the registry's RSA signing key
//   - SessionIssuer   — issues and verifies RS256 JWT session tokens whose
//     subject is a secp256k1 address
//   - LoginDigest     — the challenge an address signs to obtain a session
//   - RequireSession  — Gin middleware enforcing Bearer session authentication
//
// Sessions exist so that revoke and authority administration — which the
// ledger authorises by caller identity rather than by per-request signature —
// have an authenticated identity to act as.
package identity

import (
	"fmt"
	"time"

	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// LoginWindow is how far a login challenge timestamp may deviate from the
// registry clock before it is rejected.
const LoginWindow = 5 * time.Minute

// LoginDigest builds the challenge digest a caller signs to prove control of
// an address. The ledger deployment identity and a caller-chosen timestamp
// are both part of the signed bytes, so a login signature cannot be replayed
// against another deployment or reused far outside its time window.
func LoginDigest(ledgerID ethid.Address, issuedAt time.Time) ethid.Hash {
	preimage := fmt.Sprintf("provenant-login|%s|%s", ledgerID, issuedAt.UTC().Format(time.RFC3339))
	inner := credsig.Keccak256([]byte(preimage))
	return credsig.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), inner.Bytes())
}
