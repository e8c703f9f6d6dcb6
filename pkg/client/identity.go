package client

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// Signer holds an authority's secp256k1 private key and produces the
// recoverable signatures the registry verifies.
type Signer struct {
	key  *btcec.PrivateKey
	addr ethid.Address
}

// NewSigner wraps an existing private key.
func NewSigner(key *btcec.PrivateKey) *Signer {
	return &Signer{key: key, addr: credsig.AddressOf(key.PubKey())}
}

// GenerateSigner creates a Signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewSigner(key), nil
}

// SignerFromHex parses a 32-byte hex private key, with or without 0x prefix.
func SignerFromHex(s string) (*Signer, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return NewSigner(key), nil
}

// Address returns the signer's 20-byte address.
func (s *Signer) Address() ethid.Address { return s.addr }

// SignCredential signs the mutation digest for (subject, category,
// payloadHash) bound to ledgerID, returning the r||s||v signature.
func (s *Signer) SignCredential(subject ethid.Address, category, payloadHash ethid.Hash, ledgerID ethid.Address) ([]byte, error) {
	return credsig.Sign(credsig.BuildMessage(subject, category, payloadHash, ledgerID), s.key)
}

// SignLogin signs the timestamped login challenge for ledgerID. The registry
// accepts the challenge only within its login window, so issuedAt should be
// the current time.
func (s *Signer) SignLogin(ledgerID ethid.Address, issuedAt time.Time) ([]byte, error) {
	return credsig.Sign(loginDigest(ledgerID, issuedAt), s.key)
}

// loginDigest mirrors the challenge digest the registry verifies on
// POST /sessions.
func loginDigest(ledgerID ethid.Address, issuedAt time.Time) ethid.Hash {
	preimage := fmt.Sprintf("provenant-login|%s|%s", ledgerID, issuedAt.UTC().Format(time.RFC3339))
	inner := credsig.Keccak256([]byte(preimage))
	return credsig.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), inner.Bytes())
}
