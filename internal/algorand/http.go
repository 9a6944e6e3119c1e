package algorand

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bhulekhchain/bridge/internal/hashchain"
)

// HTTPClient talks JSON to the algod gateway service that fronts the
// Algorand node. The gateway verifies the account signature on each
// submission before relaying it to the network.
type HTTPClient struct {
	baseURL  string
	apiToken string
	account  *Account
	http     *http.Client
}

// NewHTTPClient creates an HTTPClient targeting baseURL, authenticating
// with apiToken and signing submissions with account.
func NewHTTPClient(baseURL, apiToken string, account *Account, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		account:  account,
		http:     &http.Client{Timeout: timeout},
	}
}

// AccountBalance implements Client.
func (c *HTTPClient) AccountBalance(ctx context.Context, addr string) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.get(ctx, "/v1/accounts/"+addr, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// LastRound implements Client.
func (c *HTTPClient) LastRound(ctx context.Context) (uint64, error) {
	var out struct {
		LastRound uint64 `json:"last_round"`
	}
	if err := c.get(ctx, "/v1/status", &out); err != nil {
		return 0, err
	}
	return out.LastRound, nil
}

// submitRequest is the wire payload for a signed method-call submission.
type submitRequest struct {
	Sender    string     `json:"sender"`
	Call      MethodCall `json:"call"`
	Signature string     `json:"signature"` // base64 ed25519 signature over the canonical call digest
}

// SubmitMethodCall implements Client. The signature covers the SHA-256 of
// the canonical JSON encoding of the call, bound to the sender address.
func (c *HTTPClient) SubmitMethodCall(ctx context.Context, call MethodCall) (string, error) {
	callJSON, err := json.Marshal(call)
	if err != nil {
		return "", fmt.Errorf("marshal method call: %w", err)
	}
	digest := hashchain.Digest(append([]byte(c.account.Address+"|"), callJSON...))
	sig := c.account.Sign([]byte(digest))

	body, err := json.Marshal(submitRequest{
		Sender:    c.account.Address,
		Call:      call,
		Signature: base64.StdEncoding.EncodeToString(sig),
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Algo-API-Token", c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("algod gateway returned status %d on submit", resp.StatusCode)
	}

	var out struct {
		TxID string `json:"tx_id"`
	}
	if err := decodeBody(resp.Body, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// PendingTransaction implements Client.
func (c *HTTPClient) PendingTransaction(ctx context.Context, txID string) (*PendingTx, error) {
	var out PendingTx
	if err := c.get(ctx, "/v1/transactions/pending/"+txID, &out); err != nil {
		return nil, err
	}
	out.TxID = txID
	return &out, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("X-Algo-API-Token", c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return ErrTxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("algod gateway returned status %d for %s", resp.StatusCode, path)
	}
	return decodeBody(resp.Body, out)
}

func decodeBody(r io.Reader, out any) error {
	body, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
