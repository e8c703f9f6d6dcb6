package auditchain

import (
	"fmt"
	"time"

	"github.com/provenant-id/provenant/pkg/credsig"
)

// GenesisHash is the canonical well-known hash of the genesis entry. It is
// the trust anchor of the chain; all subsequent entry hashes chain from this
// constant rather than from a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// SystemActor is recorded as the actor of entries the registry itself writes.
const SystemActor = "provenant-system"

// Entry is a single audit record: one successful ledger mutation, chained to
// its predecessor by keccak-256.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`   // hex address; empty for genesis
	Category  string    `json:"category"`  // hex category id; empty for genesis
	Action    string    `json:"action"`    // issued, updated, revoked, genesis
	Actor     string    `json:"actor"`     // authority address or SystemActor
	DataHash  string    `json:"data_hash"` // keccak-256 of the event JSON
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// now returns the entry timestamp for a fresh append. Truncated to
// microseconds: timestamptz carries no more precision, and the hash preimage
// must survive a database round trip unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// hashEntry computes a deterministic keccak-256 hash over an entry's fields.
// Never called on the genesis entry (index 0).
func hashEntry(e *Entry) string {
	preimage := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Subject, e.Category, e.Action, e.Actor, e.DataHash, e.PrevHash,
	)
	return credsig.Keccak256([]byte(preimage)).String()[2:]
}

// digest returns the hex keccak-256 of data without the 0x prefix.
func digest(data []byte) string {
	return credsig.Keccak256(data).String()[2:]
}
