package model

import (
	"time"

	"github.com/provenant-id/provenant/pkg/ethid"
)

// CredentialVersion is one immutable snapshot of a credential: the digest of
// the off-chain payload, an opaque locator for the blob, and the authority
// that produced it. Versions are never mutated or removed once appended.
type CredentialVersion struct {
	PayloadHash ethid.Hash    `json:"payload_hash"`
	StorageRef  string        `json:"storage_ref"`
	Authority   ethid.Address `json:"authority"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CredentialRecord is the versioned ledger entry for one (subject, category)
// pair. The record is created on first issuance and never deleted; revocation
// is a terminal annotation, not removal.
type CredentialRecord struct {
	Subject  ethid.Address `json:"subject"`
	Category ethid.Hash    `json:"category"`

	Exists           bool          `json:"exists"`
	Revoked          bool          `json:"revoked"`
	RevocationReason string        `json:"revocation_reason,omitempty"`
	RevokedAt        time.Time     `json:"revoked_at,omitzero"`
	RevokedBy        ethid.Address `json:"revoked_by,omitempty"`

	// Versions is append-only and non-empty once Exists is true.
	// Ordinals are 1-indexed for display.
	Versions []CredentialVersion `json:"versions"`
}

// OriginalAuthority returns the authority that issued version 1. Only this
// address may ever update or revoke the record, regardless of later
// authority reassignments.
func (r *CredentialRecord) OriginalAuthority() ethid.Address {
	if len(r.Versions) == 0 {
		return ethid.ZeroAddress
	}
	return r.Versions[0].Authority
}

// Head returns the most recently appended version. Callers must check Exists
// first; Head on an empty record returns the zero value.
func (r *CredentialRecord) Head() CredentialVersion {
	if len(r.Versions) == 0 {
		return CredentialVersion{}
	}
	return r.Versions[len(r.Versions)-1]
}

// Valid reports whether the credential exists and has not been revoked.
func (r *CredentialRecord) Valid() bool {
	return r.Exists && !r.Revoked
}

// Clone returns a deep copy so store snapshots never alias live state.
func (r *CredentialRecord) Clone() *CredentialRecord {
	cp := *r
	cp.Versions = make([]CredentialVersion, len(r.Versions))
	copy(cp.Versions, r.Versions)
	return &cp
}

// RevocationInfo is the query projection of a record's revocation state.
// Zero-valued when the record was never revoked.
type RevocationInfo struct {
	Revoked   bool          `json:"revoked"`
	Reason    string        `json:"reason,omitempty"`
	RevokedAt time.Time     `json:"revoked_at,omitzero"`
	RevokedBy ethid.Address `json:"revoked_by,omitempty"`
}

// LatestResult is the query projection returned by Latest: the head version
// plus the record-level flags a verifier cares about.
type LatestResult struct {
	Version      CredentialVersion `json:"version"`
	Ordinal      int               `json:"ordinal"`
	VersionCount int               `json:"version_count"`
	Revoked      bool              `json:"revoked"`
}

// AuthorityAssignment maps one credential category to the single address
// currently authorised to issue it.
type AuthorityAssignment struct {
	Category  ethid.Hash    `json:"category"`
	Authority ethid.Address `json:"authority"`
	UpdatedAt time.Time     `json:"updated_at"`
}
