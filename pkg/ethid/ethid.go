// Package ethid provides the fixed-width identifier types used throughout the
// Provenant credential registry: 20-byte secp256k1-derived addresses and
// 32-byte keccak digests. Both serialise as 0x-prefixed lowercase hex.
package ethid

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// AddressLen is the byte length of an Address.
const AddressLen = 20

// HashLen is the byte length of a Hash.
const HashLen = 32

// Address is a 20-byte account identifier, derived from the keccak-256 of an
// uncompressed secp256k1 public key (last 20 bytes).
type Address [AddressLen]byte

// Hash is a 32-byte keccak-256 digest. Credential categories and payload
// hashes are both Hash values.
type Hash [HashLen]byte

// ZeroAddress is the unassigned-authority sentinel.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed (or bare) 40-character hex string.
func ParseAddress(s string) (Address, error) {
	b, err := parseFixedHex(s, AddressLen)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// ParseHash decodes a 0x-prefixed (or bare) 64-character hex string.
func ParseHash(s string) (Hash, error) {
	b, err := parseFixedHex(s, HashLen)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash %q: %w", s, err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func parseFixedHex(s string, n int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != n*2 {
		return nil, fmt.Errorf("expected %d hex characters, got %d", n*2, len(s))
	}
	return hex.DecodeString(s)
}

// String returns the 0x-prefixed lowercase hex encoding.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// String returns the 0x-prefixed lowercase hex encoding.
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// Bytes returns a copy-free slice over the address bytes.
func (a Address) Bytes() []byte { return a[:] }

// Bytes returns a copy-free slice over the digest bytes.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether the address is the unassigned sentinel.
func (a Address) IsZero() bool { return a == ZeroAddress }

// IsZero reports whether the digest is all zeroes.
func (h Hash) IsZero() bool { return h == Hash{} }

// MarshalJSON encodes the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// UnmarshalJSON decodes an address from a hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the digest as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) { return json.Marshal(h.String()) }

// UnmarshalJSON decodes a digest from a hex string.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
