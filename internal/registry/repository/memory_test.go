package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/provenant-id/provenant/internal/registry/model"
	"github.com/provenant-id/provenant/internal/registry/repository"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

var ctx = context.Background()

var (
	subject, _   = ethid.ParseAddress("0x1111111111111111111111111111111111111111")
	authority, _ = ethid.ParseAddress("0x2222222222222222222222222222222222222222")
	catPersonal  = credsig.CategoryID("PERSONAL")
	catMedical   = credsig.CategoryID("MEDICAL")
)

func issueVersion(rec *model.CredentialRecord, payload string) {
	rec.Exists = true
	rec.Versions = append(rec.Versions, model.CredentialVersion{
		PayloadHash: credsig.Keccak256([]byte(payload)),
		StorageRef:  "ref:" + payload,
		Authority:   authority,
	})
}

func TestGet_absentRecord(t *testing.T) {
	s := repository.NewMemoryStore()
	if _, err := s.Get(ctx, subject, catPersonal); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get on empty store: got %v, want ErrNotFound", err)
	}
}

func TestMutate_createAndRead(t *testing.T) {
	s := repository.NewMemoryStore()

	rec, err := s.Mutate(ctx, subject, catPersonal, func(rec *model.CredentialRecord) error {
		issueVersion(rec, "v1")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Exists || len(rec.Versions) != 1 {
		t.Fatalf("unexpected record after create: exists=%v versions=%d", rec.Exists, len(rec.Versions))
	}

	got, err := s.Get(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if got.Head().StorageRef != "ref:v1" {
		t.Errorf("head storage ref: got %q", got.Head().StorageRef)
	}
}

func TestMutate_failingFnIsNoOp(t *testing.T) {
	s := repository.NewMemoryStore()
	_, err := s.Mutate(ctx, subject, catPersonal, func(rec *model.CredentialRecord) error {
		issueVersion(rec, "v1")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	_, err = s.Mutate(ctx, subject, catPersonal, func(rec *model.CredentialRecord) error {
		issueVersion(rec, "v2")
		rec.Revoked = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	got, err := s.Get(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Versions) != 1 || got.Revoked {
		t.Errorf("failed mutation leaked state: versions=%d revoked=%v", len(got.Versions), got.Revoked)
	}
}

func TestMutate_failedCreateLeavesNoRecord(t *testing.T) {
	s := repository.NewMemoryStore()
	boom := errors.New("boom")

	if _, err := s.Mutate(ctx, subject, catPersonal, func(rec *model.CredentialRecord) error {
		issueVersion(rec, "v1")
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if _, err := s.Get(ctx, subject, catPersonal); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("failed create left a record behind: %v", err)
	}

	cats, err := s.SubjectCategories(ctx, subject)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 0 {
		t.Errorf("failed create indexed the subject: %v", cats)
	}
}

func TestGet_returnsSnapshot(t *testing.T) {
	s := repository.NewMemoryStore()
	_, _ = s.Mutate(ctx, subject, catPersonal, func(rec *model.CredentialRecord) error {
		issueVersion(rec, "v1")
		return nil
	})

	snap, err := s.Get(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	snap.Revoked = true
	snap.Versions[0].StorageRef = "tampered"

	fresh, err := s.Get(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Revoked || fresh.Versions[0].StorageRef != "ref:v1" {
		t.Error("mutating a returned snapshot changed stored state")
	}
}

func TestSubjectCategories_firstIssueOrderAndDedup(t *testing.T) {
	s := repository.NewMemoryStore()

	create := func(cat ethid.Hash, payload string) {
		t.Helper()
		if _, err := s.Mutate(ctx, subject, cat, func(rec *model.CredentialRecord) error {
			issueVersion(rec, payload)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	create(catPersonal, "p1")
	create(catMedical, "m1")

	// A later mutation of an existing record must not re-index the category.
	if _, err := s.Mutate(ctx, subject, catPersonal, func(rec *model.CredentialRecord) error {
		issueVersion(rec, "p2")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	cats, err := s.SubjectCategories(ctx, subject)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	if cats[0] != catPersonal || cats[1] != catMedical {
		t.Error("categories not in first-issue order")
	}
}

func TestSubjectCategories_unknownSubjectIsEmpty(t *testing.T) {
	s := repository.NewMemoryStore()
	cats, err := s.SubjectCategories(ctx, subject)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 0 {
		t.Errorf("expected no categories, got %v", cats)
	}
}

func TestAuthority_setGet(t *testing.T) {
	s := repository.NewMemoryStore()

	got, err := s.GetAuthority(ctx, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsZero() {
		t.Errorf("unassigned category: got %s, want zero address", got)
	}

	if err := s.SetAuthority(ctx, catPersonal, authority); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetAuthority(ctx, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if got != authority {
		t.Errorf("GetAuthority: got %s, want %s", got, authority)
	}

	// Reassignment overwrites.
	other, _ := ethid.ParseAddress("0x3333333333333333333333333333333333333333")
	if err := s.SetAuthority(ctx, catPersonal, other); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetAuthority(ctx, catPersonal)
	if got != other {
		t.Errorf("after reassignment: got %s, want %s", got, other)
	}
}
