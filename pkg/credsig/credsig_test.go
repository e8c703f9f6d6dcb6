package credsig_test

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/provenant-id/provenant/pkg/credsig"
	"github.com/provenant-id/provenant/pkg/ethid"
)

func newKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func addr(t *testing.T, s string) ethid.Address {
	t.Helper()
	a, err := ethid.ParseAddress(s)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

var (
	testSubject  = "0x1111111111111111111111111111111111111111"
	testLedger   = "0x2222222222222222222222222222222222222222"
	testPayload  = credsig.Keccak256([]byte("payload-v1"))
	testCategory = credsig.CategoryID("PERSONAL")
)

func TestSignRecover_roundTrip(t *testing.T) {
	key := newKey(t)
	want := credsig.AddressOf(key.PubKey())

	digest := credsig.BuildMessage(addr(t, testSubject), testCategory, testPayload, addr(t, testLedger))
	sig, err := credsig.Sign(digest, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != credsig.SignatureLen {
		t.Fatalf("signature length: got %d, want %d", len(sig), credsig.SignatureLen)
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Errorf("recovery id: got %d, want 27 or 28", v)
	}

	got, err := credsig.Recover(digest, sig)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("recovered %s, want %s", got, want)
	}
}

func TestRecover_acceptsZeroBasedRecoveryID(t *testing.T) {
	key := newKey(t)
	digest := credsig.Keccak256([]byte("some digest"))
	sig, err := credsig.Sign(digest, key)
	if err != nil {
		t.Fatal(err)
	}

	// Tooling sometimes emits v as 0/1 instead of 27/28.
	alt := bytes.Clone(sig)
	alt[64] -= 27

	a, err := credsig.Recover(digest, sig)
	if err != nil {
		t.Fatal(err)
	}
	b, err := credsig.Recover(digest, alt)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("v=0/1 and v=27/28 recovered different signers: %s vs %s", a, b)
	}
}

func TestRecover_wrongDigestRecoversDifferentSigner(t *testing.T) {
	key := newKey(t)
	want := credsig.AddressOf(key.PubKey())

	digest := credsig.Keccak256([]byte("original"))
	sig, err := credsig.Sign(digest, key)
	if err != nil {
		t.Fatal(err)
	}

	other := credsig.Keccak256([]byte("tampered"))
	got, err := credsig.Recover(other, sig)
	if err == nil && got == want {
		t.Error("signature over one digest must not recover the signer for another")
	}
}

func TestRecover_rejectsMalformed(t *testing.T) {
	digest := credsig.Keccak256([]byte("x"))

	if _, err := credsig.Recover(digest, make([]byte, 64)); !errors.Is(err, credsig.ErrMalformedSignature) {
		t.Errorf("short signature: got %v, want ErrMalformedSignature", err)
	}

	bad := make([]byte, credsig.SignatureLen)
	bad[64] = 5 // not 0/1/27/28
	if _, err := credsig.Recover(digest, bad); !errors.Is(err, credsig.ErrMalformedSignature) {
		t.Errorf("bad recovery id: got %v, want ErrMalformedSignature", err)
	}
}

func TestBuildMessage_bindsLedgerID(t *testing.T) {
	subject := addr(t, testSubject)

	d1 := credsig.BuildMessage(subject, testCategory, testPayload, addr(t, testLedger))
	d2 := credsig.BuildMessage(subject, testCategory, testPayload, addr(t, "0x3333333333333333333333333333333333333333"))
	if d1 == d2 {
		t.Error("digests for different ledger identities must differ")
	}

	// Same inputs must be deterministic.
	d3 := credsig.BuildMessage(subject, testCategory, testPayload, addr(t, testLedger))
	if d1 != d3 {
		t.Error("digest is not deterministic")
	}
}

func TestBuildMessage_bindsEveryField(t *testing.T) {
	subject := addr(t, testSubject)
	ledger := addr(t, testLedger)
	base := credsig.BuildMessage(subject, testCategory, testPayload, ledger)

	if got := credsig.BuildMessage(addr(t, "0x4444444444444444444444444444444444444444"), testCategory, testPayload, ledger); got == base {
		t.Error("changing subject did not change digest")
	}
	if got := credsig.BuildMessage(subject, credsig.CategoryID("MEDICAL"), testPayload, ledger); got == base {
		t.Error("changing category did not change digest")
	}
	if got := credsig.BuildMessage(subject, testCategory, credsig.Keccak256([]byte("payload-v2")), ledger); got == base {
		t.Error("changing payload hash did not change digest")
	}
}

func TestCategoryID_distinctNames(t *testing.T) {
	if credsig.CategoryID("PERSONAL") == credsig.CategoryID("MEDICAL") {
		t.Error("distinct names produced the same category id")
	}
	if credsig.CategoryID("PERSONAL") != credsig.CategoryID("PERSONAL") {
		t.Error("category id is not deterministic")
	}
}

func TestParseSignature(t *testing.T) {
	key := newKey(t)
	sig, err := credsig.Sign(credsig.Keccak256([]byte("d")), key)
	if err != nil {
		t.Fatal(err)
	}

	encoded := "0x" + hex.EncodeToString(sig)

	decoded, err := credsig.ParseSignature(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, sig) {
		t.Error("ParseSignature did not round trip")
	}

	if _, err := credsig.ParseSignature("0x1234"); !errors.Is(err, credsig.ErrMalformedSignature) {
		t.Errorf("short hex: got %v, want ErrMalformedSignature", err)
	}
	if _, err := credsig.ParseSignature("zz"); !errors.Is(err, credsig.ErrMalformedSignature) {
		t.Errorf("non-hex: got %v, want ErrMalformedSignature", err)
	}
}

func TestVerifier_recoverSigner(t *testing.T) {
	key := newKey(t)
	want := credsig.AddressOf(key.PubKey())
	ledger := addr(t, testLedger)
	subject := addr(t, testSubject)

	v := credsig.NewVerifier(ledger)
	sig, err := credsig.Sign(v.Digest(subject, testCategory, testPayload), key)
	if err != nil {
		t.Fatal(err)
	}

	got, err := v.RecoverSigner(subject, testCategory, testPayload, sig)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("recovered %s, want %s", got, want)
	}

	// The same signature presented to a different deployment recovers some
	// other address (or fails), never the original signer.
	other := credsig.NewVerifier(addr(t, "0x3333333333333333333333333333333333333333"))
	if got, err := other.RecoverSigner(subject, testCategory, testPayload, sig); err == nil && got == want {
		t.Error("signature replayed across deployments recovered the signer")
	}
}
