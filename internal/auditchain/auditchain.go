// Package auditchain provides the append-only, hash-chained audit log of
// ledger events. Every successful issue, update, and revoke lands here as one
// entry, so external consumers can verify the mutation history without
// trusting the registry database.
package auditchain

import (
	"context"

	"github.com/provenant-id/provenant/internal/registry/model"
)

// Chain is the interface for the append-only audit log. Both MemoryChain and
// PostgresChain implement it.
type Chain interface {
	// Append records a ledger event chained to the previous entry. The event
	// is JSON-marshalled and its keccak-256 stored as DataHash.
	Append(ctx context.Context, ev model.Event) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the total number of entries (including genesis).
	Len(ctx context.Context) (int, error)

	// Verify walks the entire chain and checks hash consistency.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent entry (the chain tip).
	Root(ctx context.Context) (string, error)
}
