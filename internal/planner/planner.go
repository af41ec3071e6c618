// Package planner implements the operation engine's plan-time component
// (spec.md §2 component 6, §4.2-4.4): prepareCollect, prepareSend, and
// prepareSwapDeposit. Each turns a validated user intent plus the current
// gateway/on-chain balances into a persisted Operation with an ordered,
// fully costed list of Steps. The planner never mutates steps after
// creation; that is the Executor's and Reconciler's job (internal/advance).
//
// Concurrent balance and delegate-authorization probes follow spec.md §9's
// "parallel chain probes" design note: a fan-out with per-task failure
// isolation, grounded on arcsign's provider-registry fan-out pattern in
// src/chainadapter/provider/registry.go, which also isolates one backend's
// panic/error from sibling lookups.
package planner

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/metrics"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/utils"
)

// Planner builds Operations from user intents. All fields are required
// except Metrics and Logger.
type Planner struct {
	Catalogue  engineext.ChainCatalogue
	Gateway    engineext.GatewayClient
	SwapRouter engineext.SwapRouterClient
	Store      engineext.RecordStore
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger

	// Clock and NewID are overridden in tests for determinism; production
	// callers should leave them nil and let New fill in the real
	// implementations.
	Clock func() time.Time
	NewID func() (string, error)
}

// New constructs a Planner with production Clock/NewID implementations.
func New(catalogue engineext.ChainCatalogue, gateway engineext.GatewayClient, swapRouter engineext.SwapRouterClient, store engineext.RecordStore, m *metrics.Metrics, logger zerolog.Logger) *Planner {
	return &Planner{
		Catalogue:  catalogue,
		Gateway:    gateway,
		SwapRouter: swapRouter,
		Store:      store,
		Metrics:    m,
		Logger:     logger,
		Clock:      func() time.Time { return time.Now().UTC() },
		NewID:      utils.NewOperationID,
	}
}

func (p *Planner) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

func (p *Planner) newID() (string, error) {
	if p.NewID != nil {
		return p.NewID()
	}
	return utils.NewOperationID()
}

// chainProbe is one entry in a concurrent fan-out over chains.
type chainProbe struct {
	chain   string
	balance *big.Int
	err     error
}

// fanOutOnChainBalances reads the on-chain USDC balance for every chain in
// chains concurrently, isolating one chain's failure from the rest (spec.md
// §9: "a failed probe returns... zero, never aborting the plan").
func (p *Planner) fanOutOnChainBalances(ctx context.Context, walletAddress string, chains []string) map[string]*big.Int {
	results := make([]chainProbe, len(chains))
	var wg sync.WaitGroup
	for i, chain := range chains {
		wg.Add(1)
		go func(i int, chain string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = chainProbe{chain: chain, balance: big.NewInt(0)}
				}
			}()
			bal, err := p.Gateway.GetOnChainBalance(ctx, chain, walletAddress)
			if err != nil {
				results[i] = chainProbe{chain: chain, balance: big.NewInt(0), err: err}
				return
			}
			results[i] = chainProbe{chain: chain, balance: bal}
		}(i, chain)
	}
	wg.Wait()

	out := make(map[string]*big.Int, len(chains))
	for _, r := range results {
		if r.err != nil {
			p.Logger.Warn().Str("chain", r.chain).Err(r.err).Msg("on-chain balance probe failed, treating as zero")
		}
		out[r.chain] = r.balance
	}
	return out
}

// delegateProbe is one entry in a concurrent delegate-authorization fan-out.
type delegateProbe struct {
	chain      string
	authorized bool
}

// fanOutDelegateAuthorization checks, concurrently per chain, whether
// delegate is authorized for depositor. A failed lookup counts as
// not-authorized (spec.md §4.2 step 5, §9).
func (p *Planner) fanOutDelegateAuthorization(ctx context.Context, depositor, delegate string, chains []string) map[string]bool {
	results := make([]delegateProbe, len(chains))
	var wg sync.WaitGroup
	for i, chain := range chains {
		wg.Add(1)
		go func(i int, chain string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = delegateProbe{chain: chain, authorized: false}
				}
			}()
			authorized, err := p.Gateway.IsDelegateAuthorized(ctx, chain, depositor, delegate)
			if err != nil {
				results[i] = delegateProbe{chain: chain, authorized: false}
				return
			}
			results[i] = delegateProbe{chain: chain, authorized: authorized}
		}(i, chain)
	}
	wg.Wait()

	out := make(map[string]bool, len(chains))
	for _, r := range results {
		out[r.chain] = r.authorized
	}
	return out
}

func validateGatewayCapable(catalogue engineext.ChainCatalogue, chain string) error {
	if !catalogue.IsGatewayCapable(chain) {
		return engineerr.NewValidation(engineerr.CodeUnsupportedChain, "chain is not gateway-capable: "+chain, nil)
	}
	return nil
}

func newStep(id, operationID string, index int, chain string, stepType models.StepType, status models.StepStatus, createdAt time.Time) *models.Step {
	return &models.Step{
		ID: id, OperationID: operationID, StepIndex: index, Chain: chain,
		Type: stepType, Status: status, CreatedAt: createdAt,
	}
}

func sumAmounts(values []*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, v := range values {
		total.Add(total, v)
	}
	return total
}

// fmtAmount bundles a minor-unit amount with its normalized decimal-string
// rendering, computed once at the point the amount is decided, so planner
// code never reformats the same value twice.
type fmtAmount struct {
	minor   *big.Int
	decimal string
}

func newFmtAmount(minor *big.Int) *fmtAmount {
	return &fmtAmount{minor: minor, decimal: amountmath.FormatUSDC(minor)}
}

func sumFmtAmounts(values []*fmtAmount) *fmtAmount {
	minors := make([]*big.Int, len(values))
	for i, v := range values {
		minors[i] = v.minor
	}
	return newFmtAmount(sumAmounts(minors))
}
