// Package client provides the Go SDK for the BhulekhChain bridge API:
// property and encumbrance lifecycle calls, anchor management, and
// institution login.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ErrAlreadyAnchored is returned by SubmitAnchor when the block range was
// anchored before. The existing record accompanies it.
var ErrAlreadyAnchored = errors.New("block range already anchored")

// Property is the wire form of a mirrored property row.
type Property struct {
	PropertyID        string    `json:"property_id"`
	StateCode         string    `json:"state_code"`
	DistrictCode      string    `json:"district_code"`
	TehsilCode        string    `json:"tehsil_code"`
	VillageCode       string    `json:"village_code"`
	SurveyNumber      string    `json:"survey_number"`
	SubSurveyNumber   string    `json:"sub_survey_number,omitempty"`
	OwnerName         string    `json:"owner_name"`
	OwnerAadhaarHash  string    `json:"owner_aadhaar_hash"`
	LandUse           string    `json:"land_use,omitempty"`
	Status            string    `json:"status"`
	EncumbranceStatus string    `json:"encumbrance_status"`
	LedgerTxID        string    `json:"ledger_tx_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Encumbrance is the wire form of an encumbrance mirror row.
type Encumbrance struct {
	EncumbranceID     string     `json:"encumbrance_id"`
	PropertyID        string     `json:"property_id"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	InstitutionName   string     `json:"institution_name"`
	BranchCode        string     `json:"branch_code,omitempty"`
	LoanAccountNumber string     `json:"loan_account_number,omitempty"`
	SanctionedAmount  int64      `json:"sanctioned_amount,omitempty"`
	OutstandingAmount int64      `json:"outstanding_amount,omitempty"`
	InterestRate      int64      `json:"interest_rate,omitempty"`
	CourtOrderRef     string     `json:"court_order_ref,omitempty"`
	LedgerTxID        string     `json:"ledger_tx_id,omitempty"`
	ReleaseTxID       string     `json:"release_tx_id,omitempty"`
	Synced            bool       `json:"synced"`
	CreatedAt         time.Time  `json:"created_at"`
	CreatedBy         string     `json:"created_by,omitempty"`
	ReleasedAt        *time.Time `json:"released_at,omitempty"`
}

// SyncOutcome reports whether an encumbrance write reached the
// permissioned ledger or only the mirror.
type SyncOutcome struct {
	LedgerTxID string `json:"ledger_tx_id,omitempty"`
	Synced     bool   `json:"synced"`
}

// AddEncumbranceRequest is the payload for AddEncumbrance.
type AddEncumbranceRequest struct {
	PropertyID        string  `json:"property_id"`
	Type              string  `json:"type"`
	InstitutionName   string  `json:"institution_name"`
	BranchCode        string  `json:"branch_code,omitempty"`
	LoanAccountNumber string  `json:"loan_account_number,omitempty"`
	SanctionedAmount  int64   `json:"sanctioned_amount,omitempty"`
	OutstandingAmount int64   `json:"outstanding_amount,omitempty"`
	InterestRate      int64   `json:"interest_rate,omitempty"`
	CourtOrderRef     string  `json:"court_order_ref,omitempty"`
}

// RegisterPropertyRequest is the payload for RegisterProperty.
type RegisterPropertyRequest struct {
	PropertyID   string `json:"property_id"`
	OwnerName    string `json:"owner_name"`
	OwnerAadhaar string `json:"owner_aadhaar"`
	LandUse      string `json:"land_use,omitempty"`
	LedgerTxID   string `json:"ledger_tx_id,omitempty"`
}

// AnchorRecord is the wire form of a persisted anchor.
type AnchorRecord struct {
	AnchorID       string    `json:"anchor_id"`
	StateCode      string    `json:"state_code"`
	ChannelID      string    `json:"channel_id"`
	BlockRange     Range     `json:"block_range"`
	StateRoot      string    `json:"state_root"`
	TxCount        uint64    `json:"tx_count"`
	ChainTxID      string    `json:"chain_tx_id"`
	ConfirmedRound uint64    `json:"confirmed_round"`
	AnchorSeq      uint64    `json:"anchor_seq"`
	Verified       bool      `json:"verified"`
	AnchoredAt     time.Time `json:"anchored_at"`
}

// Range is a half-open block interval [Start, End).
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// AuditEntry is one link of a property's audit hash chain.
type AuditEntry struct {
	PropertyID string    `json:"property_id"`
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	DataHash   string    `json:"data_hash"`
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// Institution is the wire form of an API principal.
type Institution struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	MspID     string    `json:"msp_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is the bridge SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any TLS options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained session token to every request,
// skipping Login.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a locally-generated CA.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: 10 * time.Second,
		}
		return nil
	}
}

// New creates a new bridge SDK Client connected to baseURL.
//
//	c, err := client.New("http://localhost:8080")
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Login authenticates with an institution code and secret, caches the
// session token for subsequent calls, and returns it.
func (c *Client) Login(ctx context.Context, code, secret string) (string, error) {
	payload, _ := json.Marshal(map[string]string{"code": code, "secret": secret})
	body, err := c.post(ctx, "/api/v1/auth/login", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}

	c.mu.Lock()
	c.bearerToken = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

// RegisterProperty mirrors a property row on the bridge. Admin only.
func (c *Client) RegisterProperty(ctx context.Context, req RegisterPropertyRequest) (*Property, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.post(ctx, "/api/v1/properties", payload)
	if err != nil {
		return nil, err
	}

	var prop Property
	if err := json.Unmarshal(body, &prop); err != nil {
		return nil, fmt.Errorf("decode property: %w", err)
	}
	return &prop, nil
}

// GetProperty fetches one property by id.
func (c *Client) GetProperty(ctx context.Context, propertyID string) (*Property, error) {
	body, err := c.get(ctx, "/api/v1/properties/"+propertyID)
	if err != nil {
		return nil, err
	}
	var prop Property
	if err := json.Unmarshal(body, &prop); err != nil {
		return nil, fmt.Errorf("decode property: %w", err)
	}
	return &prop, nil
}

// ListProperties returns properties in a state.
func (c *Client) ListProperties(ctx context.Context, stateCode string) ([]Property, error) {
	body, err := c.get(ctx, "/api/v1/properties?state="+stateCode)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Properties []Property `json:"properties"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Properties, nil
}

// PropertyEncumbrances returns all encumbrances recorded against a
// property, released ones included.
func (c *Client) PropertyEncumbrances(ctx context.Context, propertyID string) ([]Encumbrance, error) {
	body, err := c.get(ctx, "/api/v1/properties/"+propertyID+"/encumbrances")
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Encumbrances []Encumbrance `json:"encumbrances"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Encumbrances, nil
}

// AuditTrail returns a property's audit chain, oldest first.
func (c *Client) AuditTrail(ctx context.Context, propertyID string) ([]AuditEntry, error) {
	body, err := c.get(ctx, "/api/v1/properties/"+propertyID+"/audit")
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Entries []AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Entries, nil
}

// VerifyAuditTrail re-walks a property's audit chain server-side and
// reports whether every link is intact.
func (c *Client) VerifyAuditTrail(ctx context.Context, propertyID string) (bool, error) {
	body, err := c.get(ctx, "/api/v1/properties/"+propertyID+"/audit/verify")
	if err != nil {
		return false, err
	}
	var resp struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return resp.Valid, nil
}

// FreezeProperty places a court freeze on a property. Court only.
func (c *Client) FreezeProperty(ctx context.Context, propertyID string) error {
	_, err := c.post(ctx, "/api/v1/properties/"+propertyID+"/freeze", nil)
	return err
}

// UnfreezeProperty lifts a court freeze. Court only.
func (c *Client) UnfreezeProperty(ctx context.Context, propertyID string) error {
	_, err := c.post(ctx, "/api/v1/properties/"+propertyID+"/unfreeze", nil)
	return err
}

// AddEncumbrance records a new encumbrance. The returned SyncOutcome
// tells whether the write reached the permissioned ledger or landed
// mirror-only (degraded mode).
func (c *Client) AddEncumbrance(ctx context.Context, req AddEncumbranceRequest) (*Encumbrance, *SyncOutcome, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.post(ctx, "/api/v1/encumbrances", payload)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Encumbrance Encumbrance `json:"encumbrance"`
		Sync        SyncOutcome `json:"sync"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp.Encumbrance, &resp.Sync, nil
}

// GetEncumbrance fetches one encumbrance by id.
func (c *Client) GetEncumbrance(ctx context.Context, encumbranceID string) (*Encumbrance, error) {
	body, err := c.get(ctx, "/api/v1/encumbrances/"+encumbranceID)
	if err != nil {
		return nil, err
	}
	var enc Encumbrance
	if err := json.Unmarshal(body, &enc); err != nil {
		return nil, fmt.Errorf("decode encumbrance: %w", err)
	}
	return &enc, nil
}

// ReleaseEncumbrance releases an active encumbrance.
func (c *Client) ReleaseEncumbrance(ctx context.Context, encumbranceID string) (*Encumbrance, error) {
	body, err := c.post(ctx, "/api/v1/encumbrances/"+encumbranceID+"/release", nil)
	if err != nil {
		return nil, err
	}
	var enc Encumbrance
	if err := json.Unmarshal(body, &enc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &enc, nil
}

// ResyncEncumbrances triggers a repair pass over unsynced mirror rows and
// returns how many were replayed to the ledger. Admin only.
func (c *Client) ResyncEncumbrances(ctx context.Context) (int, error) {
	body, err := c.post(ctx, "/api/v1/encumbrances/resync", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Repaired int `json:"repaired"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return resp.Repaired, nil
}

// SubmitAnchor anchors the block range [start, end) for a state. Admin
// only. When the range was anchored before, the existing record is
// returned together with ErrAlreadyAnchored.
func (c *Client) SubmitAnchor(ctx context.Context, stateCode, channelID string, start, end uint64) (*AnchorRecord, error) {
	payload, _ := json.Marshal(map[string]any{
		"state_code": stateCode,
		"channel_id": channelID,
		"start":      start,
		"end":        end,
	})

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/anchors", payload)
	if err != nil {
		return nil, err
	}
	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusCreated, http.StatusOK:
		var rec AnchorRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode anchor response: %w", err)
		}
		return &rec, nil
	case http.StatusConflict:
		var resp struct {
			Anchor *AnchorRecord `json:"anchor"`
			Error  string        `json:"error"`
		}
		if err := json.Unmarshal(body, &resp); err != nil || resp.Anchor == nil {
			return nil, fmt.Errorf("anchor conflict: %s", string(body))
		}
		return resp.Anchor, ErrAlreadyAnchored
	default:
		return nil, fmt.Errorf("server error %d: %s", status, string(body))
	}
}

// ResolveAnchor settles a submission that timed out waiting for
// confirmation. A nil record means the transaction never landed and
// resubmission is safe.
func (c *Client) ResolveAnchor(ctx context.Context, stateCode, channelID string, start, end uint64, chainTxID string) (*AnchorRecord, error) {
	payload, _ := json.Marshal(map[string]any{
		"state_code":  stateCode,
		"channel_id":  channelID,
		"start":       start,
		"end":         end,
		"chain_tx_id": chainTxID,
	})
	body, err := c.post(ctx, "/api/v1/anchors/resolve", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Resolved bool          `json:"resolved"`
		Anchor   *AnchorRecord `json:"anchor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode resolve response: %w", err)
	}
	return resp.Anchor, nil
}

// GetAnchor fetches one anchor record by id.
func (c *Client) GetAnchor(ctx context.Context, anchorID string) (*AnchorRecord, error) {
	body, err := c.get(ctx, "/api/v1/anchors/"+anchorID)
	if err != nil {
		return nil, err
	}
	var rec AnchorRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode anchor: %w", err)
	}
	return &rec, nil
}

// LatestAnchor returns the newest anchor for a state.
func (c *Client) LatestAnchor(ctx context.Context, stateCode string) (*AnchorRecord, error) {
	body, err := c.get(ctx, "/api/v1/anchors/latest?state="+stateCode)
	if err != nil {
		return nil, err
	}
	var rec AnchorRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode anchor: %w", err)
	}
	return &rec, nil
}

// ListAnchors returns up to limit anchors for a state, newest first.
func (c *Client) ListAnchors(ctx context.Context, stateCode string, limit int) ([]AnchorRecord, error) {
	path := "/api/v1/anchors?state=" + stateCode
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Anchors []AnchorRecord `json:"anchors"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Anchors, nil
}

// VerifyAnchor asks the bridge to re-fetch the anchor transaction from
// the public chain and compare it against the stored record.
func (c *Client) VerifyAnchor(ctx context.Context, anchorID string) (bool, error) {
	body, err := c.post(ctx, "/api/v1/anchors/"+anchorID+"/verify", nil)
	if err != nil {
		return false, err
	}
	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}
	return resp.Verified, nil
}

// CreateInstitution onboards a new API principal. Admin only.
func (c *Client) CreateInstitution(ctx context.Context, code, name, role, mspID, secret string) (*Institution, error) {
	payload, _ := json.Marshal(map[string]string{
		"code":   code,
		"name":   name,
		"role":   role,
		"msp_id": mspID,
		"secret": secret,
	})
	body, err := c.post(ctx, "/api/v1/institutions", payload)
	if err != nil {
		return nil, err
	}
	var inst Institution
	if err := json.Unmarshal(body, &inst); err != nil {
		return nil, fmt.Errorf("decode institution: %w", err)
	}
	return &inst, nil
}

// ListInstitutions returns all API principals. Admin only.
func (c *Client) ListInstitutions(ctx context.Context) ([]Institution, error) {
	body, err := c.get(ctx, "/api/v1/institutions")
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Institutions []Institution `json:"institutions"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Institutions, nil
}

// Health fetches the bridge's dependency report. The boolean is the
// overall verdict; the raw JSON carries per-component detail.
func (c *Client) Health(ctx context.Context) (bool, json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return false, nil, err
	}
	status, body, err := c.doStatusBody(req)
	if err != nil {
		return false, nil, err
	}
	return status == http.StatusOK, body, nil
}

// get executes an authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// post executes an authenticated POST and returns the response body.
// payload may be nil for body-less calls.
func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", req.URL.Path)
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	}
	if status >= 300 {
		return nil, fmt.Errorf("server error %d: %s", status, string(body))
	}
	return body, nil
}

// doStatusBody is a lower-level HTTP call that returns (statusCode, body, error)
// without failing on 4xx responses. The caller interprets the status code.
func (c *Client) doStatusBody(req *http.Request) (int, []byte, error) {
	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
