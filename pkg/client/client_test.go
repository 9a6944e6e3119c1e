package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bhulekhchain/bridge/pkg/client"
)

// ── Stub server ─────────────────────────────────────────────────────────

func stubBridgeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code   string `json:"code"`
			Secret string `json:"secret"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req.Secret != "correct-horse-battery" {
			http.Error(w, `{"error":"invalid credentials","kind":"UNAUTHORIZED"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token":       "session-token-123",
			"institution": map[string]any{"code": req.Code, "role": "bank"},
		})
	})

	mux.HandleFunc("/api/v1/properties/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/properties/MH-PUN-HVL-KTJ-9-0" {
			http.Error(w, `{"error":"property not found","kind":"NOT_FOUND"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"property_id":        "AP-GNT-TNL-SKM-142-3",
			"state_code":         "AP",
			"status":             "ACTIVE",
			"encumbrance_status": "CLEAR",
		})
	})

	mux.HandleFunc("/api/v1/encumbrances", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token-123" {
			http.Error(w, `{"error":"missing bearer token","kind":"UNAUTHORIZED"}`, http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"encumbrance": map[string]any{
				"encumbrance_id": "enc_a1b2c3d4",
				"property_id":    "AP-GNT-TNL-SKM-142-3",
				"type":           "MORTGAGE",
				"status":         "ACTIVE",
				"synced":         true,
			},
			"sync": map[string]any{"ledger_tx_id": "FABTX01", "synced": true},
		})
	})

	mux.HandleFunc("/api/v1/anchors", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StateCode string `json:"state_code"`
			Start     uint64 `json:"start"`
			End       uint64 `json:"end"`
		}
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck

		if req.Start == 0 && req.End == 500 {
			// Range already covered.
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"error": "range already anchored",
				"kind":  "ALREADY_ANCHORED",
				"anchor": map[string]any{
					"anchor_id":   "anc_deadbeef",
					"state_code":  req.StateCode,
					"block_range": map[string]uint64{"start": 0, "end": 500},
					"anchor_seq":  7,
				},
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"anchor_id":   "anc_00c0ffee",
			"state_code":  req.StateCode,
			"block_range": map[string]uint64{"start": req.Start, "end": req.End},
			"chain_tx_id": "ALGOTX01",
			"anchor_seq":  8,
		})
	})

	mux.HandleFunc("/api/v1/anchors/resolve", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"resolved": false,
			"detail":   "transaction unknown or still pending; resubmission is safe",
		})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"healthy": false,
			"components": map[string]any{
				"fabric": map[string]any{"healthy": false, "error": "connection refused"},
			},
		})
	})

	return httptest.NewServer(mux)
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestLogin_cachesToken(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)

	token, err := c.Login(context.Background(), "SBIN", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "session-token-123" {
		t.Errorf("unexpected token: %s", token)
	}

	// The cached token must flow into subsequent authenticated calls.
	enc, sync, err := c.AddEncumbrance(context.Background(), client.AddEncumbranceRequest{
		PropertyID:      "AP-GNT-TNL-SKM-142-3",
		Type:            "MORTGAGE",
		InstitutionName: "State Bank",
	})
	if err != nil {
		t.Fatalf("AddEncumbrance after login: %v", err)
	}
	if enc.EncumbranceID != "enc_a1b2c3d4" {
		t.Errorf("unexpected encumbrance id: %s", enc.EncumbranceID)
	}
	if !sync.Synced || sync.LedgerTxID != "FABTX01" {
		t.Errorf("unexpected sync outcome: %+v", sync)
	}
}

func TestLogin_badSecret(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	if _, err := c.Login(context.Background(), "SBIN", "wrong"); err == nil {
		t.Error("expected error for bad credentials")
	}
}

func TestAddEncumbrance_requiresToken(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL) // never logged in
	_, _, err := c.AddEncumbrance(context.Background(), client.AddEncumbranceRequest{
		PropertyID: "AP-GNT-TNL-SKM-142-3",
		Type:       "MORTGAGE",
	})
	if err == nil {
		t.Error("expected unauthorized error without a token")
	}
}

func TestGetProperty_success(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	prop, err := c.GetProperty(context.Background(), "AP-GNT-TNL-SKM-142-3")
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if prop.EncumbranceStatus != "CLEAR" {
		t.Errorf("unexpected encumbrance status: %s", prop.EncumbranceStatus)
	}
}

func TestGetProperty_notFound(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	if _, err := c.GetProperty(context.Background(), "MH-PUN-HVL-KTJ-9-0"); err == nil {
		t.Error("expected error for unknown property")
	}
}

func TestSubmitAnchor_success(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithBearerToken("session-token-123"))
	rec, err := c.SubmitAnchor(context.Background(), "AP", "land-registry-channel", 500, 900)
	if err != nil {
		t.Fatalf("SubmitAnchor: %v", err)
	}
	if rec.AnchorSeq != 8 || rec.ChainTxID != "ALGOTX01" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestSubmitAnchor_alreadyAnchored(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithBearerToken("session-token-123"))
	rec, err := c.SubmitAnchor(context.Background(), "AP", "land-registry-channel", 0, 500)
	if !errors.Is(err, client.ErrAlreadyAnchored) {
		t.Fatalf("expected ErrAlreadyAnchored, got %v", err)
	}
	if rec == nil || rec.AnchorID != "anc_deadbeef" {
		t.Errorf("expected the existing record alongside the error, got %+v", rec)
	}
}

func TestResolveAnchor_unknownTx(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithBearerToken("session-token-123"))
	rec, err := c.ResolveAnchor(context.Background(), "AP", "land-registry-channel", 0, 500, "GHOSTTX")
	if err != nil {
		t.Fatalf("ResolveAnchor: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record for an unconfirmed transaction, got %+v", rec)
	}
}

func TestHealth_unhealthy(t *testing.T) {
	srv := stubBridgeServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	healthy, raw, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if healthy {
		t.Error("expected unhealthy verdict from a 503 response")
	}
	var report struct {
		Components map[string]struct {
			Healthy bool `json:"healthy"`
		} `json:"components"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatal(err)
	}
	if report.Components["fabric"].Healthy {
		t.Error("fabric component should be unhealthy")
	}
}
