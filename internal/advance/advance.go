// Package advance implements the operation engine's single "advance a
// stuck operation" step: submitting pending burn intents and attempting
// their paired mints. Both the Executor's eager path (spec.md §4.5.3–4)
// and the Reconciler's periodic retry (spec.md §4.6.b/c) call the same
// Advance function, the factored function the Design Note in spec.md §9
// calls for to prevent the two paths drifting apart.
package advance

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/metrics"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/store"
)

// Dependencies bundles everything Advance needs from the outside world.
// RelayerPrivateKey may be empty, meaning mints are never attempted eagerly
// (spec.md §4.5.4, "if a server relayer key is configured"). Store is
// optional; when set, every step status transition is guarded by
// CompareAndSetStepStatus (spec.md §5) before being applied in memory, so a
// concurrent writer (the Executor's eager path racing the Reconciler's
// tick on the same operation) can never silently clobber the other's
// transition. A nil Store falls back to the old in-memory-only behavior,
// which test fixtures rely on.
type Dependencies struct {
	Gateway           engineext.GatewayClient
	DelegateKeys      engineext.DelegateKeySource
	RelayerPrivateKey string
	Store             engineext.RecordStore
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
}

// Advance mutates op's steps in place: it submits every PENDING BURN_INTENT
// step, then attempts the destination-chain mint for each newly (or
// already) confirmed burn whose paired MINT step is still PENDING. Callers
// still persist the mutated Operation afterward; Advance only touches the
// record store itself to CAS-guard individual step transitions when
// deps.Store is set (see Dependencies). Advance itself never returns an
// error: an invalid burn amount, an unbuildable burn intent, or an expired
// attestation fails the affected step, and every other failure is logged
// and leaves the step PENDING, matching the "any other error: leave
// PENDING, log" policy in spec.md §4.5/§4.6.
func Advance(ctx context.Context, op *models.Operation, deps Dependencies) {
	for _, step := range op.Steps {
		if step.Type != models.StepBurnIntent || step.Status != models.StepPending {
			continue
		}
		advanceBurnIntent(ctx, op, step, deps)
	}

	for i, step := range op.Steps {
		if step.Type != models.StepMint || step.Status != models.StepPending {
			continue
		}
		burns := precedingConfirmedBurns(op, i)
		if burns == nil {
			continue
		}
		advanceMint(ctx, op, step, burns, deps)
	}

	op.Status = op.DeriveStatus()
	if op.Status == models.OperationCompleted || op.Status == models.OperationFailed {
		now := stepTimestamp()
		op.CompletedAt = &now
	}
}

func advanceBurnIntent(ctx context.Context, op *models.Operation, step *models.Step, deps Dependencies) {
	if step.BurnIntentData.Kind != models.BurnDataBurn || step.BurnIntentData.Burn == nil {
		return
	}
	params := step.BurnIntentData.Burn

	amountMinor, err := amountmath.ParseUSDC(params.Amount)
	if err != nil {
		failStep(step, "invalid burn amount: "+err.Error())
		return
	}

	delegateKey, err := deps.DelegateKeys.DelegateKeyFor(ctx, op.UserID)
	if err != nil {
		deps.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
			Err(err).Msg("failed to resolve delegate key, leaving burn intent pending")
		return
	}

	intent, err := deps.Gateway.CreateBurnIntent(ctx, engineext.BurnIntentRequest{
		SourceChain: params.SourceChain,
		DestChain:   params.DestinationChain,
		AmountMinor: amountMinor,
		Depositor:   params.Depositor,
		Recipient:   params.Recipient,
	})
	if err != nil {
		failStep(step, "failed to build burn intent: "+err.Error())
		return
	}

	result, err := deps.Gateway.SignAndSubmitBurnIntent(ctx, intent, delegateKey)
	delegateKey = "" // decrypted key is used once and discarded, never cached (spec.md §9)
	if err != nil {
		switch {
		case engineerr.IsAttestationConsumed(err):
			if casTransition(ctx, deps, op, step, models.StepConfirmed) {
				confirmStep(step, "burn intent already consumed upstream")
			}
		case engineerr.IsTransient(err):
			deps.Logger.Info().Str("operation_id", op.ID).Str("step_id", step.ID).
				Msg("burn intent submission transient failure, leaving pending for reconciler")
		default:
			deps.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
				Err(err).Msg("burn intent submission failed, leaving pending for reconciler")
		}
		recordStepTransition(deps.Metrics, step)
		return
	}

	if !casTransition(ctx, deps, op, step, models.StepConfirmed) {
		return
	}
	step.Attestation = result.Attestation
	step.OperatorSignature = result.OperatorSignature
	confirmStep(step, "")
	recordStepTransition(deps.Metrics, step)
	deps.Logger.Info().Str("operation_id", op.ID).Str("step_id", step.ID).
		Msg("burn intent confirmed")
}

// advanceMint executes the destination-chain mint for every burn in burns
// (a multi-source Collect pairs N confirmed burns with a single MINT step;
// every other flow pairs exactly one). The mint is gated by
// precedingConfirmedBurns requiring all of them CONFIRMED with an
// attestation first, so a partial burn set never triggers an early mint.
func advanceMint(ctx context.Context, op *models.Operation, step *models.Step, burns []*models.Step, deps Dependencies) {
	if step.TxHash != "" {
		// Idempotency guard (spec.md §4.6.c): a mint that already recorded a
		// txHash succeeded on a prior pass; confirm without retrying.
		confirmStep(step, "")
		return
	}
	if deps.RelayerPrivateKey == "" {
		return
	}

	var txHashes []string
	var consumed int
	for _, burn := range burns {
		txHash, err := deps.Gateway.ExecuteMint(ctx, step.Chain, burn.Attestation, burn.OperatorSignature, deps.RelayerPrivateKey)
		if err != nil {
			switch {
			case engineerr.IsAttestationConsumed(err):
				// A previous pass already minted this burn (the
				// TransferSpecHashUsed guard, spec.md §9); the remaining
				// burns in this set still need their own mint attempt.
				consumed++
				continue
			case engineerr.IsAttestationExpired(err):
				if casTransition(ctx, deps, op, step, models.StepFailed) {
					failStep(step, "attestation expired before mint could be submitted")
				}
			case engineerr.IsTransient(err):
				deps.Logger.Info().Str("operation_id", op.ID).Str("step_id", step.ID).
					Msg("mint transient failure, leaving pending for reconciler")
			default:
				deps.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
					Err(err).Msg("mint failed, leaving pending for reconciler")
			}
			recordStepTransition(deps.Metrics, step)
			return
		}
		txHashes = append(txHashes, txHash)
	}

	if !casTransition(ctx, deps, op, step, models.StepConfirmed) {
		return
	}
	note := ""
	if len(txHashes) > 0 {
		step.TxHash = strings.Join(txHashes, ",")
	} else if consumed == len(burns) {
		note = "mint already consumed upstream"
	}
	confirmStep(step, note)
	recordStepTransition(deps.Metrics, step)
	deps.Logger.Info().Str("operation_id", op.ID).Str("step_id", step.ID).
		Str("tx_hash", step.TxHash).Msg("mint confirmed")
}

// precedingConfirmedBurns returns every BURN_INTENT step immediately ahead
// of the MINT step at mintIdx, back to the previous non-burn step or
// operation start. A multi-source Collect emits exactly this shape —
// burn_1..burn_N ahead of one MINT (spec.md §8's "count of CONFIRMED
// BURN_INTENT steps carrying an attestation" invariant spans all of them,
// not just the nearest one). It returns nil unless every step in that run
// is CONFIRMED with a usable attestation, mirroring reconciler.go's
// allLowerIndexSettled gating for LIFI_SWAP steps.
func precedingConfirmedBurns(op *models.Operation, mintIdx int) []*models.Step {
	start := mintIdx
	for start > 0 && op.Steps[start-1].Type == models.StepBurnIntent {
		start--
	}
	if start == mintIdx {
		return nil
	}
	burns := op.Steps[start:mintIdx]
	for _, b := range burns {
		if b.Status != models.StepConfirmed || !b.HasAttestation() {
			return nil
		}
	}
	return burns
}

// casTransition CAS-guards step's move from its current status to next
// against deps.Store (spec.md §5's row-level atomicity primitive) before
// the caller applies the same transition in memory. It reports whether the
// caller should proceed: true if deps.Store is nil (no guard configured,
// preserves the old in-memory-only behavior for callers/tests that don't
// wire a store) or the CAS succeeded; false if a concurrent writer already
// moved the step out from under us, in which case the caller must leave
// the step untouched rather than overwrite that writer's transition.
func casTransition(ctx context.Context, deps Dependencies, op *models.Operation, step *models.Step, next models.StepStatus) bool {
	if deps.Store == nil {
		return true
	}
	err := deps.Store.CompareAndSetStepStatus(ctx, op.ID, step.ID, step.Status, next)
	if err == nil {
		return true
	}
	if err == store.ErrStatusMismatch {
		deps.Logger.Info().Str("operation_id", op.ID).Str("step_id", step.ID).
			Msg("step already transitioned by a concurrent writer, skipping")
		return false
	}
	deps.Logger.Warn().Str("operation_id", op.ID).Str("step_id", step.ID).
		Err(err).Msg("failed to CAS step status, applying transition in memory only")
	return true
}

func confirmStep(step *models.Step, note string) {
	step.Status = models.StepConfirmed
	step.ErrorMessage = note
	now := stepTimestamp()
	step.CompletedAt = &now
}

func failStep(step *models.Step, message string) {
	step.Status = models.StepFailed
	step.ErrorMessage = message
	now := stepTimestamp()
	step.CompletedAt = &now
}

func recordStepTransition(m *metrics.Metrics, step *models.Step) {
	if m == nil {
		return
	}
	m.RecordStepTransition(string(step.Type), string(step.Status))
}

func stepTimestamp() time.Time {
	return time.Now().UTC()
}
