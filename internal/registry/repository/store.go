// Package repository provides the persistence layer for the credential
// ledger: an injectable store abstraction with in-memory and PostgreSQL
// implementations. The ledger service is a pure state transition on top of
// these interfaces, so it is testable without any database.
package repository

import (
	"context"

	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// MutateFunc is applied to the current record for a (subject, category) key.
// When no record exists it receives a zero record with Exists == false.
// Returning an error aborts the mutation with no state change and no index
// update — the store guarantees the failure is an atomic no-op.
type MutateFunc func(rec *model.CredentialRecord) error

// CredentialStore persists credential records and the subject index.
//
// Mutations to the same key are mutually exclusive; mutations to different
// keys may proceed in parallel. Reads observe either the pre- or post-state
// of a mutation, never a partially appended version.
type CredentialStore interface {
	// Get returns a snapshot of the record, or model.ErrNotFound.
	Get(ctx context.Context, subject ethid.Address, category ethid.Hash) (*model.CredentialRecord, error)

	// Mutate applies fn to the record under per-key exclusion and persists
	// the result. A record whose Exists flag transitions to true is added to
	// the subject index exactly once.
	Mutate(ctx context.Context, subject ethid.Address, category ethid.Hash, fn MutateFunc) (*model.CredentialRecord, error)

	// SubjectCategories returns every category ever issued to subject, in
	// insertion order, without duplicates. Unknown subjects yield an empty
	// slice, not an error.
	SubjectCategories(ctx context.Context, subject ethid.Address) ([]ethid.Hash, error)
}

// AuthorityStore persists the category → authority assignment table.
type AuthorityStore interface {
	// GetAuthority returns the assigned address, or ethid.ZeroAddress when
	// the category is unassigned.
	GetAuthority(ctx context.Context, category ethid.Hash) (ethid.Address, error)

	// SetAuthority replaces (or creates) the assignment for category.
	SetAuthority(ctx context.Context, category ethid.Hash, authority ethid.Address) error
}
