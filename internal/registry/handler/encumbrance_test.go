package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/auditchain"
	"github.com/bhulekhchain/bridge/internal/auth"
	"github.com/bhulekhchain/bridge/internal/fabric"
	"github.com/bhulekhchain/bridge/internal/notify"
	"github.com/bhulekhchain/bridge/internal/registry/handler"
	"github.com/bhulekhchain/bridge/internal/registry/model"
	"github.com/bhulekhchain/bridge/internal/registry/repository"
	"github.com/bhulekhchain/bridge/internal/registry/service"
)

const testSalt = "0123456789abcdef0123456789abcdef"

// okGateway accepts every chaincode call with a fixed transaction id.
type okGateway struct{}

func (okGateway) AddEncumbrance(_ context.Context, _ json.RawMessage) (string, error) {
	return "FABTXOK01", nil
}
func (okGateway) ReleaseEncumbrance(_ context.Context, _ string) (string, error) {
	return "FABTXOK02", nil
}
func (okGateway) RangeSummary(context.Context, string, uint64, uint64) (*fabric.RangeSummary, error) {
	return &fabric.RangeSummary{IdentifyingKey: "c0ffee", TxCount: 1}, nil
}
func (okGateway) ChannelHeight(context.Context, string) (uint64, error) { return 0, nil }
func (okGateway) RecordAnchor(context.Context, json.RawMessage) error   { return nil }

type env struct {
	router *gin.Engine
	tokens *auth.TokenIssuer
	coord  *service.Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenIssuer("test-signing-secret", "bhulekh-bridge", 0)
	coord := service.NewCoordinator(
		repository.NewMemoryPropertyRepository(),
		repository.NewMemoryEncumbranceRepository(),
		okGateway{},
		auditchain.NewMemory(),
		notify.NewNoop(zap.NewNop()),
		service.CoordinatorConfig{Salt: testSalt},
		zap.NewNop(),
	)

	router := gin.New()
	api := router.Group("/api/v1")
	handler.NewPropertyHandler(coord, tokens, zap.NewNop()).Register(api)
	handler.NewEncumbranceHandler(coord, tokens, zap.NewNop()).Register(api)

	return &env{router: router, tokens: tokens, coord: coord}
}

func (e *env) token(t *testing.T, role model.InstitutionRole) string {
	t.Helper()
	tok, err := e.tokens.Issue(&model.Institution{Code: "SBIN", Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *env) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) seedProperty(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/properties",
		`{"property_id":"AP-GNT-TNL-SKM-142-3","owner_name":"Ramesh Kumar","owner_aadhaar":"234567890123"}`,
		e.token(t, model.RoleAdmin))
	if w.Code != http.StatusCreated {
		t.Fatalf("seed property: HTTP %d: %s", w.Code, w.Body.String())
	}
}

func TestAddEncumbrance_requiresAuth(t *testing.T) {
	e := newEnv(t)
	e.seedProperty(t)

	body := `{"property_id":"AP-GNT-TNL-SKM-142-3","type":"MORTGAGE","institution_name":"State Bank"}`

	if w := e.do(t, http.MethodPost, "/api/v1/encumbrances", body, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: HTTP %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/api/v1/encumbrances", body, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("malformed token: HTTP %d", w.Code)
	}
}

func TestAddEncumbrance_roleGate(t *testing.T) {
	e := newEnv(t)
	e.seedProperty(t)

	body := `{"property_id":"AP-GNT-TNL-SKM-142-3","type":"MORTGAGE","institution_name":"State Bank"}`

	// Banks may add encumbrances; admin-only property registration must
	// refuse a bank token.
	if w := e.do(t, http.MethodPost, "/api/v1/encumbrances", body, e.token(t, model.RoleBank)); w.Code != http.StatusCreated {
		t.Errorf("bank add: HTTP %d: %s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodPost, "/api/v1/properties",
		`{"property_id":"MH-PUN-HVL-KTJ-9-0","owner_name":"X","owner_aadhaar":"234567890123"}`,
		e.token(t, model.RoleBank)); w.Code != http.StatusForbidden {
		t.Errorf("bank registering property: HTTP %d", w.Code)
	}
}

func TestEncumbranceLifecycle_endToEnd(t *testing.T) {
	e := newEnv(t)
	e.seedProperty(t)
	bank := e.token(t, model.RoleBank)

	w := e.do(t, http.MethodPost, "/api/v1/encumbrances",
		`{"property_id":"AP-GNT-TNL-SKM-142-3","type":"MORTGAGE","institution_name":"State Bank","sanctioned_amount":250000000}`,
		bank)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: HTTP %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Encumbrance model.EncumbranceRecord `json:"encumbrance"`
		Sync        service.SyncOutcome     `json:"sync"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if !created.Sync.Synced {
		t.Error("sync outcome not synced with a healthy ledger")
	}

	// Property flips to ENCUMBERED.
	w = e.do(t, http.MethodGet, "/api/v1/properties/AP-GNT-TNL-SKM-142-3", "", "")
	var prop model.Property
	if err := json.Unmarshal(w.Body.Bytes(), &prop); err != nil {
		t.Fatal(err)
	}
	if prop.EncumbranceStatus != model.PropertyEncumbered {
		t.Errorf("property flag: %s", prop.EncumbranceStatus)
	}

	// Release and flip back to CLEAR.
	w = e.do(t, http.MethodPost, "/api/v1/encumbrances/"+created.Encumbrance.EncumbranceID+"/release", "", bank)
	if w.Code != http.StatusOK {
		t.Fatalf("release: HTTP %d: %s", w.Code, w.Body.String())
	}

	// Second release is an invalid transition → 409 with the kind.
	w = e.do(t, http.MethodPost, "/api/v1/encumbrances/"+created.Encumbrance.EncumbranceID+"/release", "", bank)
	if w.Code != http.StatusConflict {
		t.Fatalf("double release: HTTP %d", w.Code)
	}
	var errBody struct {
		Kind string `json:"kind"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &errBody); err != nil {
		t.Fatal(err)
	}
	if errBody.Kind != "INVALID_STATE_TRANSITION" || errBody.ID != created.Encumbrance.EncumbranceID {
		t.Errorf("error body: %+v", errBody)
	}

	w = e.do(t, http.MethodGet, "/api/v1/properties/AP-GNT-TNL-SKM-142-3", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &prop); err != nil {
		t.Fatal(err)
	}
	if prop.EncumbranceStatus != model.PropertyClear {
		t.Errorf("property flag after release: %s", prop.EncumbranceStatus)
	}
}

func TestAddEncumbrance_unknownProperty(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/encumbrances",
		`{"property_id":"MH-PUN-HVL-KTJ-9-0","type":"MORTGAGE","institution_name":"State Bank"}`,
		e.token(t, model.RoleBank))
	if w.Code != http.StatusNotFound {
		t.Fatalf("HTTP %d: %s", w.Code, w.Body.String())
	}
	var errBody struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &errBody); err != nil {
		t.Fatal(err)
	}
	if errBody.Kind != "NOT_FOUND" {
		t.Errorf("kind: %s", errBody.Kind)
	}
}

func TestFreezeBlocksNewEncumbrances(t *testing.T) {
	e := newEnv(t)
	e.seedProperty(t)
	court := e.token(t, model.RoleCourt)

	// Freezing is a court power; a bank token must be refused.
	if w := e.do(t, http.MethodPost, "/api/v1/properties/AP-GNT-TNL-SKM-142-3/freeze", "", e.token(t, model.RoleBank)); w.Code != http.StatusForbidden {
		t.Errorf("bank freeze: HTTP %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/api/v1/properties/AP-GNT-TNL-SKM-142-3/freeze", "", court); w.Code != http.StatusOK {
		t.Fatalf("freeze: HTTP %d: %s", w.Code, w.Body.String())
	}

	w := e.do(t, http.MethodPost, "/api/v1/encumbrances",
		`{"property_id":"AP-GNT-TNL-SKM-142-3","type":"MORTGAGE","institution_name":"State Bank"}`,
		e.token(t, model.RoleBank))
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), `"kind":"LAND_FROZEN"`) {
		t.Fatalf("add on frozen property: HTTP %d: %s", w.Code, w.Body.String())
	}

	// Unfreeze restores normal operation.
	if w := e.do(t, http.MethodPost, "/api/v1/properties/AP-GNT-TNL-SKM-142-3/unfreeze", "", court); w.Code != http.StatusOK {
		t.Fatalf("unfreeze: HTTP %d", w.Code)
	}
	w = e.do(t, http.MethodPost, "/api/v1/encumbrances",
		`{"property_id":"AP-GNT-TNL-SKM-142-3","type":"MORTGAGE","institution_name":"State Bank"}`,
		e.token(t, model.RoleBank))
	if w.Code != http.StatusCreated {
		t.Fatalf("add after unfreeze: HTTP %d: %s", w.Code, w.Body.String())
	}
}

func TestPropertyAuditEndpoints(t *testing.T) {
	e := newEnv(t)
	e.seedProperty(t)

	w := e.do(t, http.MethodGet, "/api/v1/properties/AP-GNT-TNL-SKM-142-3/audit", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("audit: HTTP %d", w.Code)
	}
	var trail struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &trail); err != nil {
		t.Fatal(err)
	}
	if trail.Count != 1 {
		t.Errorf("audit entries: got %d, want 1", trail.Count)
	}

	w = e.do(t, http.MethodGet, "/api/v1/properties/AP-GNT-TNL-SKM-142-3/audit/verify", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"valid":true`) {
		t.Errorf("verify: HTTP %d: %s", w.Code, w.Body.String())
	}
}
