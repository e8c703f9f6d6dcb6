package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/auditchain"
	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/internal/registry/repository"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

// CredentialService is the credential ledger: it authorises and applies every
// mutation, maintains the append-only version history, and emits one audit
// event per successful commit.
//
// Authorisation model: issuance requires a signature by the authority
// currently registered for the category. Update and revoke additionally pin
// the original issuer — the acting identity must equal both the currently
// registered authority AND the authority that produced version 1, so a
// registry reassignment never lets a new authority rewrite a predecessor's
// records.
type CredentialService struct {
	creds       repository.CredentialStore
	authorities repository.AuthorityStore
	verifier    *credsig.Verifier
	audit       auditchain.Chain // nil = audit chain disabled
	logger      *zap.Logger

	now func() time.Time
}

// NewCredentialService wires the ledger. audit may be nil to disable the
// audit chain (events are still logged).
func NewCredentialService(
	creds repository.CredentialStore,
	authorities repository.AuthorityStore,
	verifier *credsig.Verifier,
	audit auditchain.Chain,
	logger *zap.Logger,
) *CredentialService {
	return &CredentialService{
		creds:       creds,
		authorities: authorities,
		verifier:    verifier,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LedgerID returns the deployment identity included in every signed message.
func (s *CredentialService) LedgerID() ethid.Address { return s.verifier.LedgerID() }

// Issue creates the record for (subject, category) and appends version 1.
//
// The signature must be by the authority currently registered for the
// category, over the replay-protected message for (subject, category,
// payloadHash) on this deployment. Fails with ErrAlreadyExists,
// ErrCategoryUnassigned, ErrUnauthorized, or ErrInvalidSignature; every
// failure is an atomic no-op.
func (s *CredentialService) Issue(ctx context.Context, subject ethid.Address, category, payloadHash ethid.Hash, storageRef string, sig []byte) (*model.CredentialRecord, error) {
	signer, err := s.verifier.RecoverSigner(subject, category, payloadHash, sig)
	if err != nil {
		return nil, model.ErrInvalidSignature
	}

	registered, err := s.authorities.GetAuthority(ctx, category)
	if err != nil {
		return nil, err
	}
	if registered.IsZero() {
		return nil, model.ErrCategoryUnassigned
	}
	if signer != registered {
		return nil, model.ErrUnauthorized
	}

	issuedAt := s.now()
	rec, err := s.creds.Mutate(ctx, subject, category, func(rec *model.CredentialRecord) error {
		if rec.Exists {
			return model.ErrAlreadyExists
		}
		rec.Exists = true
		rec.Versions = append(rec.Versions, model.CredentialVersion{
			PayloadHash: payloadHash,
			StorageRef:  storageRef,
			Authority:   signer,
			CreatedAt:   issuedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, model.Event{
		Action:      model.ActionIssued,
		Subject:     subject,
		Category:    category,
		Authority:   signer,
		Timestamp:   issuedAt,
		PayloadHash: payloadHash,
		StorageRef:  storageRef,
	})
	return rec, nil
}

// Update appends a new version to an existing, unrevoked record. The signer
// must be both the currently registered authority and the original issuer.
func (s *CredentialService) Update(ctx context.Context, subject ethid.Address, category, newPayloadHash ethid.Hash, newStorageRef string, sig []byte) (*model.CredentialRecord, error) {
	signer, err := s.verifier.RecoverSigner(subject, category, newPayloadHash, sig)
	if err != nil {
		return nil, model.ErrInvalidSignature
	}

	registered, err := s.authorities.GetAuthority(ctx, category)
	if err != nil {
		return nil, err
	}

	updatedAt := s.now()
	var previousHash ethid.Hash
	rec, err := s.creds.Mutate(ctx, subject, category, func(rec *model.CredentialRecord) error {
		if !rec.Exists {
			return model.ErrNotFound
		}
		if rec.Revoked {
			return model.ErrRevoked
		}
		if registered.IsZero() {
			return model.ErrCategoryUnassigned
		}
		if signer != registered || signer != rec.OriginalAuthority() {
			return model.ErrUnauthorized
		}
		previousHash = rec.Head().PayloadHash
		rec.Versions = append(rec.Versions, model.CredentialVersion{
			PayloadHash: newPayloadHash,
			StorageRef:  newStorageRef,
			Authority:   signer,
			CreatedAt:   updatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, model.Event{
		Action:       model.ActionUpdated,
		Subject:      subject,
		Category:     category,
		Authority:    signer,
		Timestamp:    updatedAt,
		PayloadHash:  newPayloadHash,
		StorageRef:   newStorageRef,
		PreviousHash: previousHash,
		NewOrdinal:   len(rec.Versions),
	})
	return rec, nil
}

// Revoke terminally marks the record revoked. No signature is involved: the
// caller identity comes from its own authenticated session, and must equal
// both the currently registered authority and the original issuer. Revocation
// is one-way; the version history is untouched.
func (s *CredentialService) Revoke(ctx context.Context, subject ethid.Address, category ethid.Hash, reason string, caller ethid.Address) error {
	registered, err := s.authorities.GetAuthority(ctx, category)
	if err != nil {
		return err
	}

	revokedAt := s.now()
	_, err = s.creds.Mutate(ctx, subject, category, func(rec *model.CredentialRecord) error {
		if !rec.Exists {
			return model.ErrNotFound
		}
		if rec.Revoked {
			return model.ErrAlreadyRevoked
		}
		if caller.IsZero() || caller != registered || caller != rec.OriginalAuthority() {
			return model.ErrUnauthorized
		}
		rec.Revoked = true
		rec.RevocationReason = reason
		rec.RevokedAt = revokedAt
		rec.RevokedBy = caller
		return nil
	})
	if err != nil {
		return err
	}

	s.emit(ctx, model.Event{
		Action:    model.ActionRevoked,
		Subject:   subject,
		Category:  category,
		Authority: caller,
		Timestamp: revokedAt,
		Reason:    reason,
	})
	return nil
}

// Latest returns the head version plus the revoked flag and version count,
// or model.ErrNotFound.
func (s *CredentialService) Latest(ctx context.Context, subject ethid.Address, category ethid.Hash) (*model.LatestResult, error) {
	rec, err := s.creds.Get(ctx, subject, category)
	if err != nil {
		return nil, err
	}
	return &model.LatestResult{
		Version:      rec.Head(),
		Ordinal:      len(rec.Versions),
		VersionCount: len(rec.Versions),
		Revoked:      rec.Revoked,
	}, nil
}

// VersionAt returns the version at the 0-indexed position, or
// model.ErrNotFound / model.ErrVersionOutOfRange.
func (s *CredentialService) VersionAt(ctx context.Context, subject ethid.Address, category ethid.Hash, index int) (*model.CredentialVersion, error) {
	rec, err := s.creds.Get(ctx, subject, category)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(rec.Versions) {
		return nil, model.ErrVersionOutOfRange
	}
	v := rec.Versions[index]
	return &v, nil
}

// History returns the full ordered version sequence, or model.ErrNotFound.
func (s *CredentialService) History(ctx context.Context, subject ethid.Address, category ethid.Hash) ([]model.CredentialVersion, error) {
	rec, err := s.creds.Get(ctx, subject, category)
	if err != nil {
		return nil, err
	}
	return rec.Versions, nil
}

// IsValid reports exists && !revoked. An absent record is simply false.
func (s *CredentialService) IsValid(ctx context.Context, subject ethid.Address, category ethid.Hash) (bool, error) {
	rec, err := s.creds.Get(ctx, subject, category)
	if err != nil {
		if err == model.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return rec.Valid(), nil
}

// RevocationInfo returns the revocation annotation, or zero values when the
// record was never revoked (or does not exist).
func (s *CredentialService) RevocationInfo(ctx context.Context, subject ethid.Address, category ethid.Hash) (*model.RevocationInfo, error) {
	rec, err := s.creds.Get(ctx, subject, category)
	if err != nil {
		if err == model.ErrNotFound {
			return &model.RevocationInfo{}, nil
		}
		return nil, err
	}
	return &model.RevocationInfo{
		Revoked:   rec.Revoked,
		Reason:    rec.RevocationReason,
		RevokedAt: rec.RevokedAt,
		RevokedBy: rec.RevokedBy,
	}, nil
}

// SubjectCategories returns every category ever issued to subject, in
// insertion order. Possibly empty, never an error for unknown subjects.
func (s *CredentialService) SubjectCategories(ctx context.Context, subject ethid.Address) ([]ethid.Hash, error) {
	return s.creds.SubjectCategories(ctx, subject)
}

// VerifyHash reports whether candidate equals the head version's payload
// hash. Absent records and mismatches are both false; never an error result
// for the caller to untangle.
func (s *CredentialService) VerifyHash(ctx context.Context, subject ethid.Address, category ethid.Hash, candidate ethid.Hash) (bool, error) {
	rec, err := s.creds.Get(ctx, subject, category)
	if err != nil {
		if err == model.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return rec.Exists && rec.Head().PayloadHash == candidate, nil
}

// emit records a successful mutation on the audit chain and the structured
// log. Emission happens only after the mutation committed; an audit append
// failure is logged but does not undo the committed mutation.
func (s *CredentialService) emit(ctx context.Context, ev model.Event) {
	s.logger.Info("ledger event",
		zap.String("action", string(ev.Action)),
		zap.String("subject", ev.Subject.String()),
		zap.String("category", ev.Category.String()),
		zap.String("authority", ev.Authority.String()),
	)
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, ev); err != nil {
		s.logger.Error("audit chain append failed",
			zap.String("action", string(ev.Action)),
			zap.Error(err),
		)
	}
}
