package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/auditchain"
	"github.com/bhulekhchain/bridge/internal/fabric"
	"github.com/bhulekhchain/bridge/internal/notify"
	"github.com/bhulekhchain/bridge/internal/registry/model"
	"github.com/bhulekhchain/bridge/internal/registry/repository"
	"github.com/bhulekhchain/bridge/internal/registry/service"
)

var ctx = context.Background()

const testSalt = "0123456789abcdef0123456789abcdef"

// ledgerStub is a controllable fabric.Gateway: it can be taken offline
// (transport failure) or made to reject writes (chaincode failure).
type ledgerStub struct {
	mu          sync.Mutex
	offline     bool
	reject      bool
	txSeq       int
	addCalls    int
	releaseCall int
}

func (l *ledgerStub) setOffline(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offline = v
}

func (l *ledgerStub) nextTx(kind string) (string, error) {
	if l.offline {
		return "", fmt.Errorf("%w: connection refused", fabric.ErrUnavailable)
	}
	if l.reject {
		return "", errors.New("chaincode rejected: ACCESS_DENIED")
	}
	l.txSeq++
	return fmt.Sprintf("FAB%s%04d", kind, l.txSeq), nil
}

func (l *ledgerStub) AddEncumbrance(_ context.Context, _ json.RawMessage) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addCalls++
	return l.nextTx("ADD")
}

func (l *ledgerStub) ReleaseEncumbrance(_ context.Context, _ string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseCall++
	return l.nextTx("REL")
}

func (l *ledgerStub) RangeSummary(context.Context, string, uint64, uint64) (*fabric.RangeSummary, error) {
	return nil, errors.New("not used")
}

func (l *ledgerStub) ChannelHeight(context.Context, string) (uint64, error) {
	return 0, errors.New("not used")
}

func (l *ledgerStub) RecordAnchor(context.Context, json.RawMessage) error {
	return nil
}

type fixture struct {
	coord  *service.Coordinator
	ledger *ledgerStub
	props  *repository.MemoryPropertyRepository
	encs   *repository.MemoryEncumbranceRepository
	audit  *auditchain.MemoryLedger
}

func newFixture(t *testing.T, allowDegraded bool) *fixture {
	t.Helper()
	f := &fixture{
		ledger: &ledgerStub{},
		props:  repository.NewMemoryPropertyRepository(),
		encs:   repository.NewMemoryEncumbranceRepository(),
		audit:  auditchain.NewMemory(),
	}
	f.coord = service.NewCoordinator(
		f.props, f.encs, f.ledger, f.audit,
		notify.NewNoop(zap.NewNop()),
		service.CoordinatorConfig{Salt: testSalt, AllowDegraded: allowDegraded},
		zap.NewNop(),
	)
	return f
}

func (f *fixture) registerProperty(t *testing.T, propertyID string) *model.Property {
	t.Helper()
	prop, err := f.coord.RegisterProperty(ctx, model.RegisterPropertyRequest{
		PropertyID:   propertyID,
		OwnerName:    "Ramesh Kumar",
		OwnerAadhaar: "234567890123",
	}, "registrar")
	if err != nil {
		t.Fatal(err)
	}
	return prop
}

func mortgageRequest(propertyID string) model.AddEncumbranceRequest {
	return model.AddEncumbranceRequest{
		PropertyID:        propertyID,
		Type:              model.EncumbranceMortgage,
		InstitutionName:   "State Bank",
		BranchCode:        "SBIN0001",
		LoanAccountNumber: "LN-4821",
		SanctionedAmount:  25_00_000_00,
		OutstandingAmount: 25_00_000_00,
		Actor:             "SBIN:bank",
	}
}

func TestRegisterProperty(t *testing.T) {
	f := newFixture(t, false)

	prop := f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")
	if prop.StateCode != "AP" || prop.SurveyNumber != "142" || prop.SubSurveyNumber != "3" {
		t.Errorf("segments not extracted: %+v", prop)
	}
	if !strings.HasPrefix(prop.OwnerAadhaarHash, "sha256:") {
		t.Errorf("aadhaar not pseudonymized: %q", prop.OwnerAadhaarHash)
	}
	if strings.Contains(prop.OwnerAadhaarHash, "234567890123") {
		t.Error("raw aadhaar leaked into the stored pseudonym")
	}
	if prop.Status != model.PropertyStatusActive || prop.EncumbranceStatus != model.PropertyClear {
		t.Errorf("fresh property not ACTIVE/CLEAR: %+v", prop)
	}
}

func TestRegisterProperty_badInput(t *testing.T) {
	f := newFixture(t, false)

	cases := []struct {
		name    string
		id      string
		aadhaar string
	}{
		{"malformed id", "not-a-property-id", "234567890123"},
		{"five segments", "AP-GNT-TNL-SKM-142", "234567890123"},
		{"short aadhaar", "AP-GNT-TNL-SKM-142-3", "1234"},
		{"non-digit aadhaar", "AP-GNT-TNL-SKM-142-3", "23456789012X"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coord.RegisterProperty(ctx, model.RegisterPropertyRequest{
				PropertyID:   tc.id,
				OwnerName:    "X",
				OwnerAadhaar: tc.aadhaar,
			}, "registrar")
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestAddEncumbrance_ledgerFirst(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")

	rec, outcome, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Synced || outcome.LedgerTxID == "" {
		t.Errorf("outcome not synced: %+v", outcome)
	}
	if !strings.HasPrefix(rec.EncumbranceID, "enc_") {
		t.Errorf("encumbrance id %q lacks enc_ prefix", rec.EncumbranceID)
	}
	if rec.Status != model.EncumbranceActive {
		t.Errorf("status: got %s, want ACTIVE", rec.Status)
	}

	prop, err := f.coord.GetProperty(ctx, "AP-GNT-TNL-SKM-142-3")
	if err != nil {
		t.Fatal(err)
	}
	if prop.EncumbranceStatus != model.PropertyEncumbered {
		t.Errorf("property flag: got %s, want ENCUMBERED", prop.EncumbranceStatus)
	}

	trail, err := f.coord.AuditTrail(ctx, "AP-GNT-TNL-SKM-142-3")
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 2 || trail[1].Action != "ENCUMBRANCE_ADDED" {
		t.Errorf("audit trail missing ENCUMBRANCE_ADDED: %d entries", len(trail))
	}
	if err := f.coord.VerifyAuditTrail(ctx, "AP-GNT-TNL-SKM-142-3"); err != nil {
		t.Errorf("audit trail broken: %v", err)
	}
}

func TestAddEncumbrance_unknownProperty(t *testing.T) {
	f := newFixture(t, false)

	_, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("MH-PUN-HVL-KTJ-9-0"))
	if !errors.Is(err, repository.ErrPropertyNotFound) {
		t.Errorf("got %v, want ErrPropertyNotFound", err)
	}
	if f.ledger.addCalls != 0 {
		t.Error("ledger was called for a nonexistent property")
	}
}

func TestAddEncumbrance_unknownType(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")

	req := mortgageRequest("AP-GNT-TNL-SKM-142-3")
	req.Type = "EASEMENT"
	if _, _, err := f.coord.AddEncumbrance(ctx, req); !errors.Is(err, service.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestAddEncumbrance_frozenProperty(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")
	if err := f.coord.FreezeProperty(ctx, "AP-GNT-TNL-SKM-142-3", "court"); err != nil {
		t.Fatal(err)
	}

	_, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if !errors.Is(err, service.ErrPropertyFrozen) {
		t.Errorf("got %v, want ErrPropertyFrozen", err)
	}

	if err := f.coord.UnfreezeProperty(ctx, "AP-GNT-TNL-SKM-142-3", "court"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3")); err != nil {
		t.Errorf("add after unfreeze failed: %v", err)
	}
}

func TestAddEncumbrance_ledgerRejected(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")
	f.ledger.reject = true

	_, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if err == nil {
		t.Fatal("ledger rejection did not abort the operation")
	}

	// The mirror must never show an encumbrance the ledger rejected.
	encs, err := f.coord.ListEncumbrances(ctx, "AP-GNT-TNL-SKM-142-3")
	if err != nil {
		t.Fatal(err)
	}
	if len(encs) != 0 {
		t.Errorf("mirror has %d rows after a rejected ledger write", len(encs))
	}
	prop, _ := f.coord.GetProperty(ctx, "AP-GNT-TNL-SKM-142-3")
	if prop.EncumbranceStatus != model.PropertyClear {
		t.Error("property flag flipped despite ledger rejection")
	}
}

func TestAddEncumbrance_ledgerUnreachableStrict(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")
	f.ledger.setOffline(true)

	_, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if !errors.Is(err, fabric.ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestAddEncumbrance_degradedMode(t *testing.T) {
	f := newFixture(t, true)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")
	f.ledger.setOffline(true)

	rec, outcome, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Synced {
		t.Error("degraded write reported as synced")
	}
	if rec.Synced || rec.LedgerTxID != "" {
		t.Errorf("degraded row carries ledger provenance: %+v", rec)
	}
	if !strings.HasPrefix(rec.EncumbranceID, "enc_") {
		t.Errorf("encumbrance id %q lacks enc_ prefix", rec.EncumbranceID)
	}

	prop, _ := f.coord.GetProperty(ctx, "AP-GNT-TNL-SKM-142-3")
	if prop.EncumbranceStatus != model.PropertyEncumbered {
		t.Error("degraded write did not flip the property flag")
	}
}

func TestResyncUnsynced(t *testing.T) {
	f := newFixture(t, true)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")
	f.ledger.setOffline(true)

	rec, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if err != nil {
		t.Fatal(err)
	}

	// Ledger still down: the repair pass reports the failure and repairs
	// nothing.
	if n, err := f.coord.ResyncUnsynced(ctx, 10); err == nil || n != 0 {
		t.Errorf("resync against a dead ledger: n=%d err=%v", n, err)
	}

	f.ledger.setOffline(false)
	n, err := f.coord.ResyncUnsynced(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("repaired %d rows, want 1", n)
	}

	repaired, err := f.coord.GetEncumbrance(ctx, rec.EncumbranceID)
	if err != nil {
		t.Fatal(err)
	}
	if !repaired.Synced || repaired.LedgerTxID == "" {
		t.Errorf("row not marked synced: %+v", repaired)
	}

	// Nothing left to repair.
	if n, err := f.coord.ResyncUnsynced(ctx, 10); err != nil || n != 0 {
		t.Errorf("second pass: n=%d err=%v", n, err)
	}
}

func TestReleaseEncumbrance_stateMachine(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")

	if _, err := f.coord.ReleaseEncumbrance(ctx, "enc_missing", "SBIN:bank"); !errors.Is(err, repository.ErrEncumbranceNotFound) {
		t.Errorf("got %v, want ErrEncumbranceNotFound", err)
	}

	rec, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if err != nil {
		t.Fatal(err)
	}

	released, err := f.coord.ReleaseEncumbrance(ctx, rec.EncumbranceID, "SBIN:bank")
	if err != nil {
		t.Fatal(err)
	}
	if released.Status != model.EncumbranceReleased {
		t.Errorf("status: got %s, want RELEASED", released.Status)
	}
	if released.ReleasedAt == nil || released.ReleaseTxID == "" {
		t.Error("release provenance missing")
	}

	// RELEASED is terminal.
	if _, err := f.coord.ReleaseEncumbrance(ctx, rec.EncumbranceID, "SBIN:bank"); !errors.Is(err, service.ErrInvalidStateTransition) {
		t.Errorf("got %v, want ErrInvalidStateTransition", err)
	}
}

func TestEncumbranceLifecycle_propertyFlag(t *testing.T) {
	f := newFixture(t, false)
	f.registerProperty(t, "AP-GNT-TNL-SKM-142-3")

	status := func() model.EncumbranceSummary {
		prop, err := f.coord.GetProperty(ctx, "AP-GNT-TNL-SKM-142-3")
		if err != nil {
			t.Fatal(err)
		}
		return prop.EncumbranceStatus
	}

	first, _, err := f.coord.AddEncumbrance(ctx, mortgageRequest("AP-GNT-TNL-SKM-142-3"))
	if err != nil {
		t.Fatal(err)
	}
	if status() != model.PropertyEncumbered {
		t.Fatal("one active encumbrance: want ENCUMBERED")
	}

	lien := mortgageRequest("AP-GNT-TNL-SKM-142-3")
	lien.Type = model.EncumbranceLien
	second, _, err := f.coord.AddEncumbrance(ctx, lien)
	if err != nil {
		t.Fatal(err)
	}
	if status() != model.PropertyEncumbered {
		t.Fatal("two active encumbrances: want ENCUMBERED")
	}

	if _, err := f.coord.ReleaseEncumbrance(ctx, first.EncumbranceID, "SBIN:bank"); err != nil {
		t.Fatal(err)
	}
	if status() != model.PropertyEncumbered {
		t.Fatal("one encumbrance remains: want ENCUMBERED")
	}

	if _, err := f.coord.ReleaseEncumbrance(ctx, second.EncumbranceID, "SBIN:bank"); err != nil {
		t.Fatal(err)
	}
	if status() != model.PropertyClear {
		t.Fatal("all released: want CLEAR")
	}
}
