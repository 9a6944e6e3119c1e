package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPGateway invokes chaincode through the Fabric gateway service's JSON
// API. One instance targets one channel's gateway endpoint.
type HTTPGateway struct {
	baseURL string
	mspID   string
	http    *http.Client
}

// NewHTTPGateway creates an HTTPGateway targeting baseURL, identifying
// itself as mspID.
func NewHTTPGateway(baseURL, mspID string, timeout time.Duration) *HTTPGateway {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		mspID:   mspID,
		http:    &http.Client{Timeout: timeout},
	}
}

// invokeResponse is the gateway's reply to a chaincode invocation.
type invokeResponse struct {
	TxID   string          `json:"tx_id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// AddEncumbrance implements Gateway.
func (g *HTTPGateway) AddEncumbrance(ctx context.Context, encumbrance json.RawMessage) (string, error) {
	resp, err := g.invoke(ctx, "AddEncumbrance", string(encumbrance))
	if err != nil {
		return "", err
	}
	return resp.TxID, nil
}

// ReleaseEncumbrance implements Gateway.
func (g *HTTPGateway) ReleaseEncumbrance(ctx context.Context, encumbranceID string) (string, error) {
	resp, err := g.invoke(ctx, "ReleaseEncumbrance", encumbranceID)
	if err != nil {
		return "", err
	}
	return resp.TxID, nil
}

// RangeSummary implements Gateway. Read-only evaluation, not an invoke.
func (g *HTTPGateway) RangeSummary(ctx context.Context, channelID string, start, end uint64) (*RangeSummary, error) {
	u := g.baseURL + "/v1/channels/" + url.PathEscape(channelID) + "/range-summary" +
		"?start=" + strconv.FormatUint(start, 10) + "&end=" + strconv.FormatUint(end, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build range summary request: %w", err)
	}
	req.Header.Set("X-Msp-Id", g.mspID)

	httpResp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fabric gateway returned status %d for range summary", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read range summary: %w", err)
	}
	var summary RangeSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("decode range summary: %w", err)
	}
	return &summary, nil
}

// ChannelHeight implements Gateway.
func (g *HTTPGateway) ChannelHeight(ctx context.Context, channelID string) (uint64, error) {
	u := g.baseURL + "/v1/channels/" + url.PathEscape(channelID) + "/height"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build height request: %w", err)
	}
	req.Header.Set("X-Msp-Id", g.mspID)

	httpResp, err := g.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fabric gateway returned status %d for height", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("read height: %w", err)
	}
	var out struct {
		Height uint64 `json:"height"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode height: %w", err)
	}
	return out.Height, nil
}

// RecordAnchor implements Gateway.
func (g *HTTPGateway) RecordAnchor(ctx context.Context, anchor json.RawMessage) error {
	_, err := g.invoke(ctx, "RecordAnchor", string(anchor))
	return err
}

// invoke submits one chaincode transaction and waits for commit.
func (g *HTTPGateway) invoke(ctx context.Context, method string, arg string) (*invokeResponse, error) {
	body, err := json.Marshal(map[string]any{
		"chaincode": "land-registry",
		"method":    method,
		"args":      []string{arg},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Msp-Id", g.mspID)

	httpResp, err := g.http.Do(req)
	if err != nil {
		// Transport failure: the ledger itself never saw the call.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read invoke response: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode invoke response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK || resp.Error != "" {
		return nil, fmt.Errorf("chaincode %s rejected: %s (status %d)", method, resp.Error, httpResp.StatusCode)
	}
	return &resp, nil
}
