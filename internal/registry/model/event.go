package model

import (
	"time"

	"github.com/provenant-id/provenant/pkg/ethid"
)

// EventAction identifies the ledger mutation an event records.
type EventAction string

const (
	ActionIssued  EventAction = "issued"
	ActionUpdated EventAction = "updated"
	ActionRevoked EventAction = "revoked"
)

// Event is the auditable record emitted after every successful mutation.
// Exactly one event is emitted per commit; failed mutations emit nothing.
type Event struct {
	Action    EventAction   `json:"action"`
	Subject   ethid.Address `json:"subject"`
	Category  ethid.Hash    `json:"category"`
	Authority ethid.Address `json:"authority"`
	Timestamp time.Time     `json:"timestamp"`

	// Issued and Updated.
	PayloadHash ethid.Hash `json:"payload_hash,omitzero"`
	StorageRef  string     `json:"storage_ref,omitempty"`

	// Updated only: the head hash this update superseded and the 1-indexed
	// ordinal of the new version.
	PreviousHash ethid.Hash `json:"previous_hash,omitzero"`
	NewOrdinal   int        `json:"new_ordinal,omitempty"`

	// Revoked only.
	Reason string `json:"reason,omitempty"`
}
