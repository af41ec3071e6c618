// Package reconciler implements the operation engine's periodic background
// worker (spec.md §4.6): it retries burn intents whose deposit has since
// finalized, attempts mints whose attestation is ready, times out deposits
// that never finalized, and lifts post-mint swap steps back to
// AWAITING_SIGNATURE with a fresh quote. It shares internal/advance.Advance
// with the Executor's eager path so the two never drift apart (spec.md §9).
package reconciler

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/arcsign/opsengine/internal/advance"
	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/metrics"
	"github.com/arcsign/opsengine/internal/models"
)

// StepTimeout is the maximum time a BURN_INTENT or LIFI_SWAP step may sit
// PENDING before the reconciler fails it outright (spec.md §4.6.a).
const StepTimeout = 30 * time.Minute

// TickInterval is the cron schedule the reconciler runs on (spec.md §4.6).
const TickInterval = "@every 30s"

// Reconciler runs the periodic tick described in spec.md §4.6. A single
// atomic.Bool guard ensures at most one tick is in flight at a time, per
// process (spec.md §5, "Scheduling model").
type Reconciler struct {
	Store      engineext.RecordStore
	Gateway    engineext.GatewayClient
	SwapRouter engineext.SwapRouterClient
	Catalogue  engineext.ChainCatalogue

	DelegateKeys      engineext.DelegateKeySource
	RelayerPrivateKey string

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	Clock func() time.Time

	running atomic.Bool
	cron    *cron.Cron
}

// New constructs a Reconciler with a production clock.
func New(store engineext.RecordStore, gateway engineext.GatewayClient, swapRouter engineext.SwapRouterClient, catalogue engineext.ChainCatalogue, delegateKeys engineext.DelegateKeySource, relayerPrivateKey string, m *metrics.Metrics, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		Store: store, Gateway: gateway, SwapRouter: swapRouter, Catalogue: catalogue,
		DelegateKeys: delegateKeys, RelayerPrivateKey: relayerPrivateKey,
		Metrics: m, Logger: logger,
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

// Start schedules Tick to run every TickInterval via robfig/cron until ctx
// is canceled. Call Stop, or cancel ctx, to halt it.
func (r *Reconciler) Start(ctx context.Context) {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(TickInterval, func() { r.Tick(ctx) })
	if err != nil {
		r.Logger.Error().Err(err).Msg("failed to schedule reconciler tick")
		return
	}
	r.cron.Start()
	go func() {
		<-ctx.Done()
		r.cron.Stop()
	}()
}

// Stop halts the cron scheduler; any in-flight tick runs to completion.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Tick runs one reconciliation pass, skipping entirely if a previous tick
// is still in flight (spec.md §4.6, "serialized by a running flag").
func (r *Reconciler) Tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.Logger.Debug().Msg("skipping reconciler tick, previous tick still running")
		return
	}
	defer r.running.Store(false)

	start := r.now()
	ops, err := r.Store.ListOperationsByStatus(ctx, models.OperationProcessing)
	if err != nil {
		r.Logger.Error().Err(err).Msg("failed to load processing operations")
		return
	}

	for _, op := range ops {
		r.reconcileOne(ctx, op)
	}

	if r.Metrics != nil {
		r.Metrics.ObserveReconcilerTick(r.now().Sub(start))
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, op *models.Operation) {
	now := r.now()

	if r.failTimedOutBurns(op, now) {
		op.Status = models.OperationFailed
		op.CompletedAt = &now
		r.persist(ctx, op)
		return
	}

	advance.Advance(ctx, op, advance.Dependencies{
		Gateway: r.Gateway, DelegateKeys: r.DelegateKeys, Store: r.Store,
		RelayerPrivateKey: r.RelayerPrivateKey, Metrics: r.Metrics, Logger: r.Logger,
	})

	r.reconcileSwaps(ctx, op, now)

	op.Status = op.DeriveStatus()
	if op.Status == models.OperationCompleted || op.Status == models.OperationFailed {
		op.CompletedAt = &now
	}
	r.persist(ctx, op)
}

// failTimedOutBurns marks every PENDING BURN_INTENT step older than
// StepTimeout FAILED (spec.md §4.6.a) and reports whether any were found.
func (r *Reconciler) failTimedOutBurns(op *models.Operation, now time.Time) bool {
	timedOut := false
	for _, step := range op.Steps {
		if step.Type != models.StepBurnIntent || step.Status != models.StepPending {
			continue
		}
		if now.Sub(step.CreatedAt) > StepTimeout {
			step.Status = models.StepFailed
			step.ErrorMessage = "Timeout waiting for deposit finality"
			step.CompletedAt = &now
			timedOut = true
		}
	}
	return timedOut
}

// reconcileSwaps lifts PENDING LIFI_SWAP steps back to AWAITING_SIGNATURE
// once every step before them has settled (spec.md §4.6.d).
func (r *Reconciler) reconcileSwaps(ctx context.Context, op *models.Operation, now time.Time) {
	for i, step := range op.Steps {
		if step.Type != models.StepLifiSwap || step.Status != models.StepPending {
			continue
		}
		if !allLowerIndexSettled(op, i) {
			continue
		}
		if now.Sub(step.CreatedAt) > StepTimeout {
			step.Status = models.StepFailed
			step.ErrorMessage = "Timeout waiting for post-mint swap to requote"
			step.CompletedAt = &now
			continue
		}
		r.requoteSwap(ctx, op, step)
	}
}

func allLowerIndexSettled(op *models.Operation, idx int) bool {
	for i := 0; i < idx; i++ {
		s := op.Steps[i]
		if s.Status != models.StepConfirmed && s.Status != models.StepSkipped {
			return false
		}
	}
	return true
}

func (r *Reconciler) requoteSwap(ctx context.Context, op *models.Operation, step *models.Step) {
	if step.BurnIntentData.Kind != models.BurnDataSwap || step.BurnIntentData.Swap == nil {
		return
	}
	params := step.BurnIntentData.Swap

	info, ok := r.Catalogue.Lookup(step.Chain)
	if !ok {
		r.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
			Str("chain", step.Chain).Msg("swap requote: unknown chain, retrying next tick")
		return
	}
	amountMinor, err := amountmath.ParseUSDC(params.USDCAmount)
	if err != nil {
		r.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
			Err(err).Msg("swap requote: invalid stored amount, retrying next tick")
		return
	}

	wallet := depositorOf(op, step.StepIndex)
	quote, err := r.SwapRouter.GetQuote(ctx, engineext.SwapQuoteRequest{
		FromChain: step.Chain, ToChain: step.Chain, FromToken: info.USDCAddress, ToToken: params.OutputToken,
		FromAmount: amountMinor, FromAddress: wallet, ToAddress: params.RecipientAddress,
	})
	if err != nil {
		r.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
			Err(err).Msg("swap requote failed, retrying next tick")
		return
	}
	calls, err := r.SwapRouter.BuildSwapCalls(ctx, quote, info.USDCAddress, amountMinor)
	if err != nil {
		r.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
			Err(err).Msg("swap requote: failed to build calls, retrying next tick")
		return
	}
	callData, err := json.Marshal(calls)
	if err != nil {
		r.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
			Err(err).Msg("swap requote: failed to encode call data, retrying next tick")
		return
	}

	step.CallData = callData
	step.Status = models.StepAwaitingSignature
	op.SignRequests = append(op.SignRequests, models.SignRequest{
		StepID: step.ID, Chain: step.Chain, Type: step.Type, Calls: calls,
		Description: "Swap " + params.USDCAmount + " USDC into " + params.OutputToken, ServerSide: false,
	})
}

// RefreshSwap re-quotes operationID's pending post-mint swap on demand
// (spec.md §6, `POST operations/:id/refresh-swap`) — for when the caller's
// wallet missed the window on a quote the background tick already produced.
// It requotes regardless of StepTimeout, since an explicit user request is
// itself evidence the operation is still wanted.
func (r *Reconciler) RefreshSwap(ctx context.Context, userID, operationID string) (*models.Operation, error) {
	op, err := r.Store.GetOperation(ctx, userID, operationID)
	if err != nil {
		return nil, engineerr.NewNotFound(engineerr.CodeOperationNotFound, "operation not found: "+operationID, err)
	}

	var target *models.Step
	for _, step := range op.Steps {
		if step.Type == models.StepLifiSwap && (step.Status == models.StepPending || step.Status == models.StepAwaitingSignature) {
			target = step
			break
		}
	}
	if target == nil {
		return nil, engineerr.NewValidation(engineerr.CodeStepNotFound, "no pending or awaiting-signature swap step on this operation", nil)
	}
	if !allLowerIndexSettled(op, target.StepIndex) {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidOperationState, "swap step cannot be requoted until prior steps settle", nil)
	}

	r.requoteSwap(ctx, op, target)
	op.Status = op.DeriveStatus()
	if err := r.Store.UpdateOperation(ctx, op); err != nil {
		return nil, err
	}
	if r.Metrics != nil {
		r.Metrics.RecordOperation(string(op.Type), string(op.Status))
	}
	return op, nil
}

// depositorOf returns the wallet address that funded the burn preceding the
// step at idx, which is also the address the post-mint USDC landed in.
func depositorOf(op *models.Operation, idx int) string {
	for i := idx - 1; i >= 0; i-- {
		s := op.Steps[i]
		if s.Type == models.StepBurnIntent && s.BurnIntentData.Kind == models.BurnDataBurn && s.BurnIntentData.Burn != nil {
			return s.BurnIntentData.Burn.Recipient
		}
	}
	return ""
}

func (r *Reconciler) persist(ctx context.Context, op *models.Operation) {
	if err := r.Store.UpdateOperation(ctx, op); err != nil {
		r.Logger.Error().Err(err).Str("operation_id", op.ID).Msg("failed to persist reconciled operation")
		return
	}
	if r.Metrics != nil {
		r.Metrics.RecordOperation(string(op.Type), string(op.Status))
	}
}
