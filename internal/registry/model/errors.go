package model

import "errors"

// Ledger error taxonomy. Mutating operations fail atomically with one of
// these; queries return ErrNotFound / ErrVersionOutOfRange as plain negative
// results, never as faults.
var (
	// ErrUnauthorized — signer or caller does not match the required authority.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidSignature — the supplied signature is malformed; recovery failed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrAlreadyExists — issue attempted on a (subject, category) that already
	// has a record.
	ErrAlreadyExists = errors.New("credential already exists")

	// ErrNotFound — no record for the (subject, category) pair.
	ErrNotFound = errors.New("credential not found")

	// ErrAlreadyRevoked — revoke attempted on an already revoked record.
	ErrAlreadyRevoked = errors.New("credential already revoked")

	// ErrRevoked — update attempted on a revoked record. Terminal.
	ErrRevoked = errors.New("credential is revoked")

	// ErrVersionOutOfRange — version index beyond the history length.
	ErrVersionOutOfRange = errors.New("version index out of range")

	// ErrCategoryUnassigned — mutation against a category with no registered
	// authority.
	ErrCategoryUnassigned = errors.New("category has no registered authority")
)
