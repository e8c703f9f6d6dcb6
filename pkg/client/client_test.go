package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/provenant-id/provenant/internal/auditchain"
	"github.com/provenant-id/provenant/internal/identity"
	"github.com/provenant-id/provenant/internal/registry/handler"
	"github.com/provenant-id/provenant/internal/registry/repository"
	"github.com/provenant-id/provenant/internal/registry/service"
	"github.com/provenant-id/provenant/pkg/client"
	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

var (
	ctx         = context.Background()
	ledgerID, _ = ethid.ParseAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	subject, _  = ethid.ParseAddress("0x1111111111111111111111111111111111111111")
	catPersonal = credsig.CategoryID("PERSONAL")
	hashV1      = credsig.Keccak256([]byte("doc v1"))
	hashV2      = credsig.Keccak256([]byte("doc v2"))
)

// startRegistry boots a full in-process registry on the memory store and
// returns its base URL plus the backing store for direct authority setup.
func startRegistry(t *testing.T) (string, *repository.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	chain := auditchain.New()
	logger := zap.NewNop()

	keys := identity.NewKeyManager(t.TempDir())
	if err := keys.LoadOrCreate(); err != nil {
		t.Fatal(err)
	}
	sessions := identity.NewSessionIssuer(keys.Key(), "http://test", time.Hour)

	credSvc := service.NewCredentialService(store, store, credsig.NewVerifier(ledgerID), chain, logger)
	authSvc := service.NewAuthorityService(store, ethid.ZeroAddress, logger)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewCredentialHandler(credSvc, sessions, logger).Register(v1)
	handler.NewAuthorityHandler(authSvc, sessions, logger).Register(v1)
	handler.NewSessionHandler(sessions, ledgerID, logger).Register(v1)
	handler.NewAuditHandler(chain, logger).Register(v1)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL, store
}

func TestClient_issueUpdateQueryFlow(t *testing.T) {
	base, store := startRegistry(t)

	signer, err := client.GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetAuthority(ctx, catPersonal, signer.Address()); err != nil {
		t.Fatal(err)
	}

	c := client.MustNew(base, ledgerID)

	rec, err := c.Issue(ctx, signer, subject, catPersonal, hashV1, "s3://bucket/doc-v1.enc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Versions) != 1 || rec.Versions[0].PayloadHash != hashV1 {
		t.Fatalf("unexpected record after issue: %+v", rec)
	}

	rec, err = c.Update(ctx, signer, subject, catPersonal, hashV2, "s3://bucket/doc-v2.enc")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Versions) != 2 {
		t.Fatalf("expected 2 versions after update, got %d", len(rec.Versions))
	}

	latest, err := c.Latest(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Version.PayloadHash != hashV2 || latest.Ordinal != 2 {
		t.Errorf("latest: %+v", latest)
	}

	hist, err := c.History(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].PayloadHash != hashV1 {
		t.Errorf("history: %+v", hist)
	}

	v0, err := c.VersionAt(ctx, subject, catPersonal, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v0.StorageRef != "s3://bucket/doc-v1.enc" {
		t.Errorf("version 0 storage ref: %q", v0.StorageRef)
	}

	valid, err := c.IsValid(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if !valid {
		t.Error("credential should be valid")
	}

	match, err := c.VerifyHash(ctx, subject, catPersonal, hashV2)
	if err != nil {
		t.Fatal(err)
	}
	if !match {
		t.Error("head hash should match")
	}

	cats, err := c.SubjectCategories(ctx, subject)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0] != catPersonal {
		t.Errorf("subject categories: %v", cats)
	}
}

func TestClient_loginAndRevoke(t *testing.T) {
	base, store := startRegistry(t)

	signer, err := client.GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetAuthority(ctx, catPersonal, signer.Address()); err != nil {
		t.Fatal(err)
	}

	c := client.MustNew(base, ledgerID)
	if _, err := c.Issue(ctx, signer, subject, catPersonal, hashV1, "ref"); err != nil {
		t.Fatal(err)
	}

	// Revoke without a session fails with an authorisation error.
	if err := c.Revoke(ctx, subject, catPersonal, "expired"); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("revoke without login: got %v, want ErrUnauthorized", err)
	}

	if err := c.Login(ctx, signer); err != nil {
		t.Fatal(err)
	}
	if err := c.Revoke(ctx, subject, catPersonal, "expired"); err != nil {
		t.Fatal(err)
	}

	valid, err := c.IsValid(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if valid {
		t.Error("revoked credential reported valid")
	}

	info, err := c.Revocation(ctx, subject, catPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Revoked || info.Reason != "expired" || info.RevokedBy != signer.Address() {
		t.Errorf("revocation info: %+v", info)
	}

	// Second revoke maps to ErrConflict.
	if err := c.Revoke(ctx, subject, catPersonal, "again"); !errors.Is(err, client.ErrConflict) {
		t.Errorf("double revoke: got %v, want ErrConflict", err)
	}
}

func TestClient_notFoundMapping(t *testing.T) {
	base, _ := startRegistry(t)
	c := client.MustNew(base, ledgerID)

	if _, err := c.Latest(ctx, subject, catPersonal); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("latest on absent credential: got %v, want ErrNotFound", err)
	}
}

func TestClient_signatureBoundToLedger(t *testing.T) {
	base, store := startRegistry(t)

	signer, err := client.GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetAuthority(ctx, catPersonal, signer.Address()); err != nil {
		t.Fatal(err)
	}

	// Client configured for a different deployment identity. Its signatures
	// recover to a different address on this registry and are rejected.
	otherLedger, _ := ethid.ParseAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	wrong := client.MustNew(base, otherLedger)
	if _, err := wrong.Issue(ctx, signer, subject, catPersonal, hashV1, "ref"); err == nil {
		t.Error("cross-deployment signature accepted")
	}
}

func TestClient_auditEndpoints(t *testing.T) {
	base, store := startRegistry(t)

	signer, err := client.GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetAuthority(ctx, catPersonal, signer.Address()); err != nil {
		t.Fatal(err)
	}

	c := client.MustNew(base, ledgerID)
	if _, err := c.Issue(ctx, signer, subject, catPersonal, hashV1, "ref"); err != nil {
		t.Fatal(err)
	}

	ov, err := c.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ov.Entries != 2 { // genesis + issue
		t.Errorf("audit entries: got %d, want 2", ov.Entries)
	}
	if err := c.VerifyAudit(ctx); err != nil {
		t.Errorf("audit chain invalid: %v", err)
	}
}

func TestSignerFromHex(t *testing.T) {
	s1, err := client.GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	if s1.Address().IsZero() {
		t.Error("generated signer has zero address")
	}

	if _, err := client.SignerFromHex("0x1234"); err == nil {
		t.Error("short key accepted")
	}
	if _, err := client.SignerFromHex("zz"); err == nil {
		t.Error("non-hex key accepted")
	}
}
