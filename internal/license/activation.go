package license

import (
	"context"
	"log/slog"
	"time"

	apierrors "kdsops/internal/errors"
	"kdsops/pkg/contracts/domain"
)

// ActivationStore is the slice of the tenant store the state machine writes
// through. Every write is a conditional update on the consumed flag; won=false
// means another writer got there first.
type ActivationStore interface {
	ActivateOutlet(ctx context.Context, outletID, authUserID string) (won bool, err error)
	ActivateChain(ctx context.Context, chainID, authUserID string) (won bool, err error)
	ConsumeLicenseKey(ctx context.Context, code, usedBy string, at time.Time) (won bool, err error)
	LicenseKeyByCode(ctx context.Context, code string) (*domain.LicenseKey, error)
}

// Publisher delivers activation lifecycle events to connected observers.
// Delivery is best-effort; activation never fails on a publish problem.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Activation lifecycle event types.
const (
	EventTenantActivated = "tenant.activated"
	EventKeyConsumed     = "license.consumed"
)

// StateMachine drives the one-way Inactive -> Active transition for a
// resolved tenant. The transition is a two-step saga: flip the tenant's
// activation flags, then consume the ledger row for the code. Either step may
// have already happened on a previous partial attempt; replays by the same
// consumer converge on the active state instead of failing.
type StateMachine struct {
	store  ActivationStore
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewStateMachine creates an activation state machine. events may be nil.
func NewStateMachine(store ActivationStore, events Publisher, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		store:  store,
		events: events,
		logger: logger.With(slog.String("component", "activation")),
		now:    time.Now,
	}
}

// Activate transitions the resolved tenant to Active on behalf of consumer.
// consumer identifies who is claiming the code (an identity id, or a device
// label for device activations); authUserID, when non-empty, is additionally
// recorded on the tenant row as its owning identity.
//
// Exactly one concurrent consumer wins a contested code; losers get
// ErrLicenseAlreadyConsumed. A consumer that already holds the code may call
// again freely.
func (m *StateMachine) Activate(ctx context.Context, res *Resolution, consumer, authUserID string) error {
	if res.AlreadyUsed {
		// Resolution-time state says consumed. Tolerate only our own
		// earlier claim, observable on the ledger row.
		if res.Ledger != nil && res.Ledger.IsUsed && res.Ledger.UsedBy != nil && *res.Ledger.UsedBy == consumer {
			return m.consumeLedger(ctx, res, consumer)
		}
		return apierrors.ErrLicenseAlreadyConsumed
	}

	if !res.TenantActive {
		if err := m.activateTenant(ctx, res, consumer, authUserID); err != nil {
			return err
		}
	}

	return m.consumeLedger(ctx, res, consumer)
}

func (m *StateMachine) activateTenant(ctx context.Context, res *Resolution, consumer, authUserID string) error {
	var (
		won bool
		err error
	)
	switch res.Ref.Kind {
	case domain.TenantOutlet:
		won, err = m.store.ActivateOutlet(ctx, res.Ref.ID, authUserID)
	case domain.TenantChain:
		won, err = m.store.ActivateChain(ctx, res.Ref.ID, authUserID)
	default:
		return apierrors.ErrInternalServer
	}
	if err != nil {
		return err
	}

	if !won {
		// Lost the race on the tenant flag. The code may still be ours if a
		// prior attempt by the same consumer activated the tenant but died
		// before the ledger step; the ledger row is the arbiter.
		if !m.heldByConsumer(ctx, res, consumer) {
			m.logger.WarnContext(ctx, "activation race lost",
				slog.String("tenant_kind", string(res.Ref.Kind)),
				slog.String("tenant_id", res.Ref.ID))
			return apierrors.ErrLicenseAlreadyConsumed
		}
		return nil
	}

	m.logger.InfoContext(ctx, "tenant activated",
		slog.String("tenant_kind", string(res.Ref.Kind)),
		slog.String("tenant_id", res.Ref.ID),
		slog.String("consumer", consumer))
	m.publish(EventTenantActivated, map[string]interface{}{
		"tenant_kind": res.Ref.Kind,
		"tenant_id":   res.Ref.ID,
		"tenant_name": res.Ref.Name,
	})
	return nil
}

// consumeLedger finishes the saga against the key ledger. Codes that only
// exist on tenant rows have no ledger row; for them the tenant flag is the
// whole story.
func (m *StateMachine) consumeLedger(ctx context.Context, res *Resolution, consumer string) error {
	if res.Ledger == nil {
		return nil
	}
	if res.Ledger.IsUsed {
		if res.Ledger.UsedBy != nil && *res.Ledger.UsedBy == consumer {
			return nil
		}
		return apierrors.ErrLicenseAlreadyConsumed
	}

	won, err := m.store.ConsumeLicenseKey(ctx, res.Ledger.LicenseKey, consumer, m.now())
	if err != nil {
		return err
	}
	if !won {
		if m.heldByConsumer(ctx, res, consumer) {
			return nil
		}
		return apierrors.ErrLicenseAlreadyConsumed
	}

	m.logger.InfoContext(ctx, "license key consumed",
		slog.String("key_id", res.Ledger.ID),
		slog.String("consumer", consumer))
	m.publish(EventKeyConsumed, map[string]interface{}{
		"key_id":      res.Ledger.ID,
		"tenant_kind": res.Ref.Kind,
		"tenant_id":   res.Ref.ID,
	})
	return nil
}

// heldByConsumer re-reads the ledger row and reports whether the code is
// recorded as consumed by this consumer.
func (m *StateMachine) heldByConsumer(ctx context.Context, res *Resolution, consumer string) bool {
	if res.Ledger == nil {
		return false
	}
	row, err := m.store.LicenseKeyByCode(ctx, res.Ledger.LicenseKey)
	if err != nil {
		return false
	}
	return row.IsUsed && row.UsedBy != nil && *row.UsedBy == consumer
}

func (m *StateMachine) publish(eventType string, payload interface{}) {
	if m.events != nil {
		m.events.Publish(eventType, payload)
	}
}
