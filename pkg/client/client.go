package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/provenant-id/provenant/pkg/ethid"
)

// Sentinel errors mapped from registry HTTP responses.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Version is one immutable credential snapshot as returned by the registry.
type Version struct {
	PayloadHash ethid.Hash    `json:"payload_hash"`
	StorageRef  string        `json:"storage_ref"`
	Authority   ethid.Address `json:"authority"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Record is the full credential record returned by write operations.
type Record struct {
	Subject          ethid.Address `json:"subject"`
	Category         ethid.Hash    `json:"category"`
	Exists           bool          `json:"exists"`
	Revoked          bool          `json:"revoked"`
	RevocationReason string        `json:"revocation_reason,omitempty"`
	RevokedAt        time.Time     `json:"revoked_at"`
	RevokedBy        ethid.Address `json:"revoked_by,omitempty"`
	Versions         []Version     `json:"versions"`
}

// LatestResult is the projection returned by Latest.
type LatestResult struct {
	Version      Version `json:"version"`
	Ordinal      int     `json:"ordinal"`
	VersionCount int     `json:"version_count"`
	Revoked      bool    `json:"revoked"`
}

// RevocationInfo describes a record's revocation state. Zero-valued when the
// credential was never revoked.
type RevocationInfo struct {
	Revoked   bool          `json:"revoked"`
	Reason    string        `json:"reason,omitempty"`
	RevokedAt time.Time     `json:"revoked_at"`
	RevokedBy ethid.Address `json:"revoked_by,omitempty"`
}

// AuditOverview is the chain summary returned by Audit.
type AuditOverview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

// Client is the Provenant SDK entry point. Safe for concurrent use.
type Client struct {
	base       string
	ledgerID   ethid.Address
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionToken attaches a pre-obtained session token to every request,
// skipping the Login flow.
func WithSessionToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the registry at base. ledgerID must match the
// deployment identity the registry was started with; signatures are bound to
// it and will be rejected by any other deployment.
func New(base string, ledgerID ethid.Address, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("registry base URL is required")
	}
	c := &Client{
		base:       base,
		ledgerID:   ledgerID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, ledgerID ethid.Address, opts ...Option) *Client {
	c, err := New(base, ledgerID, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// LedgerID returns the deployment identity this client signs against.
func (c *Client) LedgerID() ethid.Address { return c.ledgerID }

// Login proves control of the signer's address to the registry and caches the
// resulting session token for Revoke and SetAuthority calls.
func (c *Client) Login(ctx context.Context, signer *Signer) error {
	now := time.Now().UTC().Truncate(time.Second)
	sig, err := signer.SignLogin(c.ledgerID, now)
	if err != nil {
		return fmt.Errorf("sign login challenge: %w", err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	err = c.call(ctx, http.MethodPost, "/api/v1/sessions", map[string]any{
		"address":   signer.Address().String(),
		"timestamp": now.Format(time.RFC3339),
		"signature": hexSig(sig),
	}, &resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// Issue signs and submits a new credential for (subject, category). The
// signer must be the authority currently registered for the category.
func (c *Client) Issue(ctx context.Context, signer *Signer, subject ethid.Address, category, payloadHash ethid.Hash, storageRef string) (*Record, error) {
	sig, err := signer.SignCredential(subject, category, payloadHash, c.ledgerID)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	var rec Record
	err = c.call(ctx, http.MethodPost, "/api/v1/credentials", map[string]any{
		"subject":      subject.String(),
		"category":     category.String(),
		"payload_hash": payloadHash.String(),
		"storage_ref":  storageRef,
		"signature":    hexSig(sig),
	}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update signs and appends a new version to an existing credential. The
// signer must be both the currently registered authority and the original
// issuer.
func (c *Client) Update(ctx context.Context, signer *Signer, subject ethid.Address, category, payloadHash ethid.Hash, storageRef string) (*Record, error) {
	sig, err := signer.SignCredential(subject, category, payloadHash, c.ledgerID)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	var rec Record
	err = c.call(ctx, http.MethodPatch, c.credPath(subject, category, ""), map[string]any{
		"payload_hash": payloadHash.String(),
		"storage_ref":  storageRef,
		"signature":    hexSig(sig),
	}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Revoke terminally revokes a credential, acting as the logged-in session
// identity. Requires a prior Login (or WithSessionToken).
func (c *Client) Revoke(ctx context.Context, subject ethid.Address, category ethid.Hash, reason string) error {
	return c.call(ctx, http.MethodDelete, c.credPath(subject, category, ""), map[string]any{
		"reason": reason,
	}, nil)
}

// Latest returns the head version of a credential.
func (c *Client) Latest(ctx context.Context, subject ethid.Address, category ethid.Hash) (*LatestResult, error) {
	var res LatestResult
	if err := c.call(ctx, http.MethodGet, c.credPath(subject, category, ""), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// History returns every version of a credential in append order.
func (c *Client) History(ctx context.Context, subject ethid.Address, category ethid.Hash) ([]Version, error) {
	var resp struct {
		Versions []Version `json:"versions"`
	}
	if err := c.call(ctx, http.MethodGet, c.credPath(subject, category, "/history"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

// VersionAt returns the version at the given zero-based index.
func (c *Client) VersionAt(ctx context.Context, subject ethid.Address, category ethid.Hash, index int) (*Version, error) {
	var resp struct {
		Version Version `json:"version"`
	}
	path := c.credPath(subject, category, fmt.Sprintf("/versions/%d", index))
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Version, nil
}

// IsValid reports whether the credential exists and has not been revoked.
// An absent credential is simply invalid, not an error.
func (c *Client) IsValid(ctx context.Context, subject ethid.Address, category ethid.Hash) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := c.call(ctx, http.MethodGet, c.credPath(subject, category, "/validity"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Revocation returns a credential's revocation state.
func (c *Client) Revocation(ctx context.Context, subject ethid.Address, category ethid.Hash) (*RevocationInfo, error) {
	var info RevocationInfo
	if err := c.call(ctx, http.MethodGet, c.credPath(subject, category, "/revocation"), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// VerifyHash checks a candidate digest against the credential's head version.
func (c *Client) VerifyHash(ctx context.Context, subject ethid.Address, category, candidate ethid.Hash) (bool, error) {
	var resp struct {
		Match bool `json:"match"`
	}
	path := c.credPath(subject, category, "/verify-hash") + "?hash=" + url.QueryEscape(candidate.String())
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Match, nil
}

// SubjectCategories lists the category ids ever issued to a subject, in
// first-issue order.
func (c *Client) SubjectCategories(ctx context.Context, subject ethid.Address) ([]ethid.Hash, error) {
	var resp struct {
		Categories []ethid.Hash `json:"categories"`
	}
	path := "/api/v1/subjects/" + subject.String() + "/categories"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// SetAuthority assigns the issuing authority for a category. Only the root
// identity's session may call this.
func (c *Client) SetAuthority(ctx context.Context, category ethid.Hash, authority ethid.Address) error {
	return c.call(ctx, http.MethodPut, "/api/v1/authorities/"+category.String(), map[string]any{
		"authority": authority.String(),
	}, nil)
}

// GetAuthority returns the authority registered for a category and whether
// one is assigned at all.
func (c *Client) GetAuthority(ctx context.Context, category ethid.Hash) (ethid.Address, bool, error) {
	var resp struct {
		Authority ethid.Address `json:"authority"`
		Assigned  bool          `json:"assigned"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/authorities/"+category.String(), nil, &resp); err != nil {
		return ethid.ZeroAddress, false, err
	}
	return resp.Authority, resp.Assigned, nil
}

// Audit returns the audit chain length and root hash.
func (c *Client) Audit(ctx context.Context) (*AuditOverview, error) {
	var ov AuditOverview
	if err := c.call(ctx, http.MethodGet, "/api/v1/audit", nil, &ov); err != nil {
		return nil, err
	}
	return &ov, nil
}

// VerifyAudit asks the registry to walk its audit chain. Returns nil when the
// chain is intact and a descriptive error when it is not.
func (c *Client) VerifyAudit(ctx context.Context) error {
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/audit/verify", nil, &resp); err != nil {
		return err
	}
	if !resp.Valid {
		return fmt.Errorf("audit chain invalid: %s", resp.Error)
	}
	return nil
}

func (c *Client) credPath(subject ethid.Address, category ethid.Hash, suffix string) string {
	return "/api/v1/credentials/" + subject.String() + "/" + category.String() + suffix
}

// call executes one JSON request/response cycle against the registry.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = string(body)
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", ErrConflict, msg)
		default:
			return fmt.Errorf("registry error %d: %s", resp.StatusCode, msg)
		}
	}

	if respBody != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// hexSig renders a signature as 0x-prefixed hex, the wire encoding the
// registry parses.
func hexSig(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}
