// Package executor implements the operation engine's submitOperation path
// (spec.md §4.5): recording user-signed transaction hashes against the
// steps that were awaiting them, then opportunistically driving any
// server-side burn-intent and mint steps forward in the same request via
// internal/advance.Advance, the same function the Reconciler uses for its
// periodic retries.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcsign/opsengine/internal/advance"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/metrics"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/store"
)

// Executor drives the submitOperation request path.
type Executor struct {
	Store        engineext.RecordStore
	Gateway      engineext.GatewayClient
	DelegateKeys engineext.DelegateKeySource

	// RelayerPrivateKey is passed through to Advance; empty disables the
	// eager mint path (spec.md §4.5.4).
	RelayerPrivateKey string

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// Clock is overridden in tests for determinism.
	Clock func() time.Time
}

// New constructs an Executor with a production clock.
func New(store engineext.RecordStore, gateway engineext.GatewayClient, delegateKeys engineext.DelegateKeySource, relayerPrivateKey string, m *metrics.Metrics, logger zerolog.Logger) *Executor {
	return &Executor{
		Store: store, Gateway: gateway, DelegateKeys: delegateKeys,
		RelayerPrivateKey: relayerPrivateKey, Metrics: m, Logger: logger,
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

func (e *Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// SignatureReport is one {stepId, txHash} entry submitted by the client
// alongside SubmitOperation (spec.md §4.5 input shape).
type SignatureReport struct {
	StepID string
	TxHash string
}

// SubmitOperation records each reported signature against its step, then
// advances the operation (spec.md §4.5 steps 3-6).
func (e *Executor) SubmitOperation(ctx context.Context, userID, operationID string, signatures []SignatureReport) (*models.Operation, error) {
	op, err := e.Store.GetOperation(ctx, userID, operationID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, engineerr.NewNotFound(engineerr.CodeOperationNotFound, "operation not found: "+operationID, err)
		}
		return nil, fmt.Errorf("executor: failed to fetch operation: %w", err)
	}
	if op.Status != models.OperationAwaitingSignature {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidOperationState,
			"operation is not awaiting signature, current status: "+string(op.Status), nil)
	}

	now := e.now()
	for _, sig := range signatures {
		step := op.StepByID(sig.StepID)
		if step == nil {
			return nil, engineerr.NewValidation(engineerr.CodeStepNotFound, "unknown step id: "+sig.StepID, nil)
		}
		// CAS-guard the confirmation against the store (spec.md §5) so a
		// reconciler tick racing this request on the same step can't have
		// its own transition silently overwritten.
		if err := e.Store.CompareAndSetStepStatus(ctx, op.ID, step.ID, step.Status, models.StepConfirmed); err != nil {
			if err == store.ErrNotFound || err == store.ErrStatusMismatch {
				return nil, engineerr.NewValidation(engineerr.CodeInvalidOperationState,
					"step "+step.ID+" was already transitioned by a concurrent update", err)
			}
			return nil, fmt.Errorf("executor: failed to record signature for step %s: %w", step.ID, err)
		}
		step.Status = models.StepConfirmed
		step.TxHash = sig.TxHash
		step.CompletedAt = &now
		op.RemoveSignRequest(step.ID)
		if e.Metrics != nil {
			e.Metrics.RecordStepTransition(string(step.Type), string(step.Status))
		}
	}

	advance.Advance(ctx, op, advance.Dependencies{
		Gateway: e.Gateway, DelegateKeys: e.DelegateKeys, Store: e.Store,
		RelayerPrivateKey: e.RelayerPrivateKey, Metrics: e.Metrics, Logger: e.Logger,
	})

	if err := e.Store.UpdateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("executor: failed to persist operation: %w", err)
	}
	if e.Metrics != nil {
		e.Metrics.RecordOperation(string(op.Type), string(op.Status))
	}
	return op, nil
}
