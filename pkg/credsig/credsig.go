// Package credsig implements the replay-protected credential signing scheme.
//
// An authority signs the keccak-256 digest of the packed encoding
//
//	subject(20) || category(32) || payloadHash(32) || ledgerID(20)
//
// wrapped in the Ethereum personal-message prefix, with a recoverable
// secp256k1 ECDSA signature. The ledger deployment identity is part of the
// signed bytes, so a signature minted for one deployment cannot be replayed
// against another.
//
// Everything in this package is pure and stateless: recovery failures are
// errors, but a recovered address that does not match the expected authority
// is not — that decision belongs to the ledger.
package credsig

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/provenant-id/provenant/pkg/ethid"
)

// SignatureLen is the length of a recoverable signature: r(32) || s(32) || v(1).
const SignatureLen = 65

// personalPrefix is the Ethereum signed-message domain separator for a
// 32-byte payload. Interoperates with eth_sign / personal_sign tooling.
const personalPrefix = "\x19Ethereum Signed Message:\n32"

// ErrMalformedSignature is returned when a signature cannot be decoded or
// public-key recovery fails outright.
var ErrMalformedSignature = errors.New("malformed signature")

// Keccak256 returns the legacy keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) ethid.Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h ethid.Hash
	d.Sum(h[:0])
	return h
}

// CategoryID derives the 32-byte category identifier from its display name,
// e.g. CategoryID("PERSONAL").
func CategoryID(name string) ethid.Hash {
	return Keccak256([]byte(name))
}

// BuildMessage produces the digest an authority must sign to authorise a
// credential mutation for (subject, category, payloadHash) on the deployment
// identified by ledgerID.
func BuildMessage(subject ethid.Address, category, payloadHash ethid.Hash, ledgerID ethid.Address) ethid.Hash {
	inner := Keccak256(subject.Bytes(), category.Bytes(), payloadHash.Bytes(), ledgerID.Bytes())
	return Keccak256([]byte(personalPrefix), inner.Bytes())
}

// Sign produces a recoverable r||s||v signature (v in {27,28}) over digest.
// Intended for clients and tests; the registry itself never signs.
func Sign(digest ethid.Hash, key *btcec.PrivateKey) ([]byte, error) {
	compact := btcecdsa.SignCompact(key, digest.Bytes(), false)
	// SignCompact emits header-first: [v+27 || r || s]. Rearrange to r||s||v.
	sig := make([]byte, SignatureLen)
	copy(sig[:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0]
	return sig, nil
}

// Recover returns the address whose key produced the r||s||v signature over
// digest. v may be 0/1 or 27/28. Returns ErrMalformedSignature when the
// signature cannot yield a public key; never inspects who the signer is.
func Recover(digest ethid.Hash, sig []byte) (ethid.Address, error) {
	if len(sig) != SignatureLen {
		return ethid.Address{}, fmt.Errorf("%w: length %d, want %d", ErrMalformedSignature, len(sig), SignatureLen)
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return ethid.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, sig[64])
	}

	compact := make([]byte, SignatureLen)
	compact[0] = v
	copy(compact[1:33], sig[:32])
	copy(compact[33:65], sig[32:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, digest.Bytes())
	if err != nil {
		return ethid.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return AddressOf(pub), nil
}

// AddressOf derives the 20-byte address of a secp256k1 public key: the last
// 20 bytes of the keccak-256 of the uncompressed point (without the 0x04 tag).
func AddressOf(pub *btcec.PublicKey) ethid.Address {
	h := Keccak256(pub.SerializeUncompressed()[1:])
	var a ethid.Address
	copy(a[:], h[12:])
	return a
}

// ParseSignature decodes a 0x-prefixed (or bare) 130-character hex signature.
func ParseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrMalformedSignature, len(sig), SignatureLen)
	}
	return sig, nil
}

// Verifier binds the scheme to one ledger deployment identity.
type Verifier struct {
	ledgerID ethid.Address
}

// NewVerifier creates a Verifier for the given deployment identity.
func NewVerifier(ledgerID ethid.Address) *Verifier {
	return &Verifier{ledgerID: ledgerID}
}

// LedgerID returns the deployment identity baked into signed messages.
func (v *Verifier) LedgerID() ethid.Address { return v.ledgerID }

// Digest builds the signable message for this deployment.
func (v *Verifier) Digest(subject ethid.Address, category, payloadHash ethid.Hash) ethid.Hash {
	return BuildMessage(subject, category, payloadHash, v.ledgerID)
}

// RecoverSigner recovers the signer of a mutation request for this deployment.
func (v *Verifier) RecoverSigner(subject ethid.Address, category, payloadHash ethid.Hash, sig []byte) (ethid.Address, error) {
	return Recover(v.Digest(subject, category, payloadHash), sig)
}
