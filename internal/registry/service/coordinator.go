package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/auditchain"
	"github.com/bhulekhchain/bridge/internal/fabric"
	"github.com/bhulekhchain/bridge/internal/hashchain"
	"github.com/bhulekhchain/bridge/internal/ids"
	"github.com/bhulekhchain/bridge/internal/notify"
	"github.com/bhulekhchain/bridge/internal/registry/model"
	"github.com/bhulekhchain/bridge/internal/registry/repository"
)

var (
	// ErrValidation rejects malformed input before any write.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStateTransition is returned for transitions the
	// encumbrance state machine does not allow (the only legal one is
	// ACTIVE → RELEASED).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrPropertyFrozen blocks new encumbrances on a FROZEN property.
	ErrPropertyFrozen = errors.New("property is frozen")
)

// notifyTimeout bounds each fire-and-forget notification delivery.
const notifyTimeout = 10 * time.Second

// SyncOutcome reports how a dual write landed. Synced is false when the
// mirror row was written without a ledger transaction (degraded mode);
// those rows are queryable and reconciled later by ResyncUnsynced.
type SyncOutcome struct {
	LedgerTxID string `json:"ledger_tx_id,omitempty"`
	Synced     bool   `json:"synced"`
}

// PropertyRepo is the property persistence surface the coordinator needs.
// *repository.PropertyRepository and *repository.MemoryPropertyRepository
// both satisfy it.
type PropertyRepo interface {
	Upsert(ctx context.Context, p *model.Property) error
	GetByID(ctx context.Context, propertyID string) (*model.Property, error)
	ListByState(ctx context.Context, stateCode string, limit, offset int) ([]*model.Property, error)
	SetEncumbranceStatus(ctx context.Context, propertyID string, status model.EncumbranceSummary) error
	SetStatus(ctx context.Context, propertyID string, status model.PropertyStatus) error
}

// EncumbranceRepo is the encumbrance persistence surface the coordinator
// needs.
type EncumbranceRepo interface {
	Create(ctx context.Context, e *model.EncumbranceRecord) error
	GetByID(ctx context.Context, encumbranceID string) (*model.EncumbranceRecord, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*model.EncumbranceRecord, error)
	ListUnsynced(ctx context.Context, limit int) ([]*model.EncumbranceRecord, error)
	UpdateStatusIf(ctx context.Context, encumbranceID string, expected, next model.EncumbranceStatus, releaseTxID string, releasedAt time.Time) error
	MarkSynced(ctx context.Context, encumbranceID, ledgerTxID string) error
	CountActiveByProperty(ctx context.Context, propertyID string) (int, error)
}

// CoordinatorConfig holds the process-wide lifecycle settings.
type CoordinatorConfig struct {
	// Salt is the pseudonymization salt, loaded once at startup and never
	// rotated.
	Salt string

	// AllowDegraded permits mirror-only encumbrance writes while the
	// permissioned ledger is unreachable. The rows are marked unsynced
	// and reconciled by ResyncUnsynced once the ledger returns.
	AllowDegraded bool
}

// Coordinator drives encumbrance and property state transitions across the
// permissioned ledger and the relational mirror. The ordering is fixed:
// the ledger write strictly precedes the mirror write, so the mirror can
// always be rebuilt by replaying the ledger.
type Coordinator struct {
	props    PropertyRepo
	encs     EncumbranceRepo
	gateway  fabric.Gateway
	audit    auditchain.Ledger
	notifier notify.Notifier
	cfg      CoordinatorConfig
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(props PropertyRepo, encs EncumbranceRepo, gateway fabric.Gateway, audit auditchain.Ledger, notifier notify.Notifier, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		props:    props,
		encs:     encs,
		gateway:  gateway,
		audit:    audit,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterProperty mirrors a property row so encumbrances have a target.
// The raw Aadhaar number is pseudonymized before anything is stored.
func (c *Coordinator) RegisterProperty(ctx context.Context, req model.RegisterPropertyRequest, actor string) (*model.Property, error) {
	if err := model.ValidatePropertyID(req.PropertyID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	pseudonym, err := hashchain.Pseudonymize(req.OwnerAadhaar, c.cfg.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	segments := propertySegments(req.PropertyID)
	prop := &model.Property{
		PropertyID:        req.PropertyID,
		StateCode:         segments[0],
		DistrictCode:      segments[1],
		TehsilCode:        segments[2],
		VillageCode:       segments[3],
		SurveyNumber:      segments[4],
		SubSurveyNumber:   segments[5],
		OwnerName:         req.OwnerName,
		OwnerAadhaarHash:  pseudonym,
		LandUse:           req.LandUse,
		Status:            model.PropertyStatusActive,
		EncumbranceStatus: model.PropertyClear,
		LedgerTxID:        req.LedgerTxID,
	}
	if err := c.props.Upsert(ctx, prop); err != nil {
		return nil, fmt.Errorf("persist property: %w", err)
	}

	c.appendAudit(ctx, prop.PropertyID, "PROPERTY_REGISTERED", actor, prop)
	return prop, nil
}

// AddEncumbrance attaches an encumbrance to a property: ledger first, then
// the mirror row, then the property's derived status flips to ENCUMBERED.
//
// If the ledger rejects the write the operation aborts before any
// relational write. If the ledger is unreachable and degraded mode is
// enabled, the mirror row is written alone and marked unsynced.
func (c *Coordinator) AddEncumbrance(ctx context.Context, req model.AddEncumbranceRequest) (*model.EncumbranceRecord, *SyncOutcome, error) {
	if !req.Type.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown encumbrance type %q", ErrValidation, req.Type)
	}

	prop, err := c.props.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	if prop.Status == model.PropertyStatusFrozen {
		return nil, nil, fmt.Errorf("%w: %s", ErrPropertyFrozen, prop.PropertyID)
	}

	rec := &model.EncumbranceRecord{
		PropertyID:        req.PropertyID,
		Type:              req.Type,
		Status:            model.EncumbranceActive,
		InstitutionName:   req.InstitutionName,
		BranchCode:        req.BranchCode,
		LoanAccountNumber: req.LoanAccountNumber,
		SanctionedAmount:  req.SanctionedAmount,
		OutstandingAmount: req.OutstandingAmount,
		InterestRate:      req.InterestRate,
		CourtOrderRef:     req.CourtOrderRef,
		CreatedAt:         time.Now().UTC(),
		CreatedBy:         req.Actor,
	}

	outcome := &SyncOutcome{}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal encumbrance: %w", err)
	}

	txID, err := c.gateway.AddEncumbrance(ctx, payload)
	switch {
	case err == nil:
		rec.EncumbranceID = ids.FromTxID("enc", txID)
		rec.LedgerTxID = txID
		rec.Synced = true
		outcome.LedgerTxID = txID
		outcome.Synced = true

	case errors.Is(err, fabric.ErrUnavailable) && c.cfg.AllowDegraded:
		// Availability over consistency, by configuration: the mirror
		// takes the write alone and the row waits for the repair pass.
		rec.EncumbranceID = ids.Random("enc")
		rec.Synced = false
		c.logger.Warn("ledger unreachable, encumbrance written unsynced",
			zap.String("encumbrance_id", rec.EncumbranceID),
			zap.String("property_id", rec.PropertyID),
			zap.Error(err),
		)

	default:
		// Ledger-first is the invariant: no mirror row may exist for an
		// encumbrance the ledger rejected or never saw.
		return nil, nil, fmt.Errorf("ledger add encumbrance: %w", err)
	}

	if err := c.encs.Create(ctx, rec); err != nil {
		if rec.Synced {
			// The ledger write cannot be rolled back; surface the
			// discrepancy loudly for the repair pass.
			c.logger.Error("encumbrance on ledger but mirror write failed",
				zap.String("ledger_tx_id", rec.LedgerTxID),
				zap.String("property_id", rec.PropertyID),
				zap.Error(err),
			)
		}
		return nil, nil, fmt.Errorf("persist encumbrance: %w", err)
	}

	if err := c.props.SetEncumbranceStatus(ctx, rec.PropertyID, model.PropertyEncumbered); err != nil {
		c.logger.Error("property flag update failed after encumbrance write",
			zap.String("property_id", rec.PropertyID),
			zap.Error(err),
		)
	}

	c.appendAudit(ctx, rec.PropertyID, "ENCUMBRANCE_ADDED", req.Actor, rec)
	c.dispatch(notify.NewEvent("encumbrance.added", rec.PropertyID, rec.EncumbranceID, req.Actor))
	return rec, outcome, nil
}

// ReleaseEncumbrance releases an ACTIVE encumbrance: ledger release, then
// the conditional mirror flip, then an authoritative recount of the
// property's remaining ACTIVE encumbrances.
func (c *Coordinator) ReleaseEncumbrance(ctx context.Context, encumbranceID, actor string) (*model.EncumbranceRecord, error) {
	rec, err := c.encs.GetByID(ctx, encumbranceID)
	if err != nil {
		return nil, err
	}
	if rec.Status != model.EncumbranceActive {
		return nil, fmt.Errorf("%w: encumbrance %s is %s", ErrInvalidStateTransition, encumbranceID, rec.Status)
	}

	releaseTxID, err := c.gateway.ReleaseEncumbrance(ctx, encumbranceID)
	if err != nil {
		return nil, fmt.Errorf("ledger release encumbrance: %w", err)
	}

	releasedAt := time.Now().UTC()
	// Conditional flip keyed on current status: of two concurrent
	// releases, exactly one wins.
	if err := c.encs.UpdateStatusIf(ctx, encumbranceID, model.EncumbranceActive, model.EncumbranceReleased, releaseTxID, releasedAt); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: encumbrance %s released concurrently", ErrInvalidStateTransition, encumbranceID)
		}
		c.logger.Error("encumbrance released on ledger but mirror flip failed",
			zap.String("encumbrance_id", encumbranceID),
			zap.String("ledger_tx_id", releaseTxID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("update encumbrance status: %w", err)
	}
	rec.Status = model.EncumbranceReleased
	rec.ReleaseTxID = releaseTxID
	rec.ReleasedAt = &releasedAt

	// Recount from the authoritative current record set, never a cached
	// counter: concurrent releases must all observe their own recount.
	active, err := c.encs.CountActiveByProperty(ctx, rec.PropertyID)
	if err != nil {
		c.logger.Error("active encumbrance recount failed",
			zap.String("property_id", rec.PropertyID),
			zap.Error(err),
		)
	} else if active == 0 {
		if err := c.props.SetEncumbranceStatus(ctx, rec.PropertyID, model.PropertyClear); err != nil {
			c.logger.Error("property flag update failed after release",
				zap.String("property_id", rec.PropertyID),
				zap.Error(err),
			)
		}
	}

	c.appendAudit(ctx, rec.PropertyID, "ENCUMBRANCE_RELEASED", actor, rec)
	c.dispatch(notify.NewEvent("encumbrance.released", rec.PropertyID, rec.EncumbranceID, actor))
	return rec, nil
}

// FreezeProperty blocks new encumbrances on a property (court order).
func (c *Coordinator) FreezeProperty(ctx context.Context, propertyID, actor string) error {
	if err := c.props.SetStatus(ctx, propertyID, model.PropertyStatusFrozen); err != nil {
		return err
	}
	c.appendAudit(ctx, propertyID, "PROPERTY_FROZEN", actor, nil)
	return nil
}

// UnfreezeProperty lifts a freeze.
func (c *Coordinator) UnfreezeProperty(ctx context.Context, propertyID, actor string) error {
	if err := c.props.SetStatus(ctx, propertyID, model.PropertyStatusActive); err != nil {
		return err
	}
	c.appendAudit(ctx, propertyID, "PROPERTY_UNFROZEN", actor, nil)
	return nil
}

// ResyncUnsynced is the repair pass for degraded-mode rows: it replays
// each unsynced encumbrance to the ledger and marks the row synced on
// success. Returns the number of rows repaired.
func (c *Coordinator) ResyncUnsynced(ctx context.Context, limit int) (int, error) {
	rows, err := c.encs.ListUnsynced(ctx, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rec := range rows {
		payload, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		txID, err := c.gateway.AddEncumbrance(ctx, payload)
		if err != nil {
			// Still unreachable or rejected; leave the row for the next
			// pass and report how far we got.
			return repaired, fmt.Errorf("resync encumbrance %s: %w", rec.EncumbranceID, err)
		}
		if err := c.encs.MarkSynced(ctx, rec.EncumbranceID, txID); err != nil {
			return repaired, fmt.Errorf("mark encumbrance %s synced: %w", rec.EncumbranceID, err)
		}
		repaired++
		c.logger.Info("unsynced encumbrance repaired",
			zap.String("encumbrance_id", rec.EncumbranceID),
			zap.String("ledger_tx_id", txID),
		)
	}
	return repaired, nil
}

// GetProperty returns the mirror row for a property.
func (c *Coordinator) GetProperty(ctx context.Context, propertyID string) (*model.Property, error) {
	return c.props.GetByID(ctx, propertyID)
}

// ListProperties returns mirror rows for a state, newest first.
func (c *Coordinator) ListProperties(ctx context.Context, stateCode string, limit, offset int) ([]*model.Property, error) {
	return c.props.ListByState(ctx, stateCode, limit, offset)
}

// GetEncumbrance returns one encumbrance row.
func (c *Coordinator) GetEncumbrance(ctx context.Context, encumbranceID string) (*model.EncumbranceRecord, error) {
	return c.encs.GetByID(ctx, encumbranceID)
}

// ListEncumbrances returns a property's encumbrances, newest first.
func (c *Coordinator) ListEncumbrances(ctx context.Context, propertyID string) ([]*model.EncumbranceRecord, error) {
	return c.encs.ListByProperty(ctx, propertyID)
}

// AuditTrail returns the property's audit stream in append order.
func (c *Coordinator) AuditTrail(ctx context.Context, propertyID string) ([]*auditchain.Entry, error) {
	return c.audit.List(ctx, propertyID)
}

// VerifyAuditTrail checks the hash consistency of a property's stream.
func (c *Coordinator) VerifyAuditTrail(ctx context.Context, propertyID string) error {
	return c.audit.Verify(ctx, propertyID)
}

// appendAudit records a transition on the property's audit stream. A
// failed append after a successful ledger write is a sync discrepancy:
// logged, never rolled back.
func (c *Coordinator) appendAudit(ctx context.Context, propertyID, action, actor string, payload any) {
	if _, err := c.audit.Append(ctx, propertyID, action, actor, payload); err != nil {
		c.logger.Error("audit chain append failed",
			zap.String("property_id", propertyID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// dispatch fires a notification without blocking the caller.
func (c *Coordinator) dispatch(event notify.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := c.notifier.Notify(ctx, event); err != nil {
			c.logger.Warn("notification delivery failed",
				zap.String("type", event.Type),
				zap.String("property_id", event.PropertyID),
				zap.Error(err),
			)
		}
	}()
}

// propertySegments splits a validated property id into its six segments.
func propertySegments(propertyID string) [6]string {
	var out [6]string
	copy(out[:], strings.SplitN(propertyID, "-", 6))
	return out
}
