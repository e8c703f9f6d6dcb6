// Package client provides the Provenant Go SDK: a typed HTTP client for the
// credential registry that signs issue and update requests locally with the
// caller's secp256k1 key.
//
// Typical authority flow:
//
//	signer, _ := client.SignerFromHex(os.Getenv("AUTHORITY_KEY"))
//	c := client.MustNew("http://localhost:8080", ledgerID)
//
//	rec, err := c.Issue(ctx, signer, subject, credsig.CategoryID("PERSONAL"),
//	    payloadHash, "s3://bucket/doc.enc")
//
// Revocation acts on a session identity rather than a per-request signature;
// call Login first to obtain and cache a session token:
//
//	if err := c.Login(ctx, signer); err != nil { ... }
//	err = c.Revoke(ctx, subject, category, "document expired")
//
// The registry never sees a private key. All key material stays inside the
// Signer, and only recoverable signatures travel over the wire.
package client
