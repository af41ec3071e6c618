package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/callbuilder"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/models"
)

// CollectRequest is the input to PrepareCollect (spec.md §4.2).
type CollectRequest struct {
	UserID           string
	WalletAddress    string
	DelegateAddress  string
	SourceChains     []string
	DestinationChain string // optional, defaults to the catalogue's HUB_CHAIN
}

// PrepareCollect plans pulling USDC deposited (or sitting on-chain) across
// several source chains into one destination, minting the net amount there
// after the gateway's intrinsic fee.
func (p *Planner) PrepareCollect(ctx context.Context, req CollectRequest) (*models.Operation, error) {
	if len(req.SourceChains) == 0 {
		return nil, engineerr.NewValidation(engineerr.CodeUnsupportedChain, "at least one source chain is required", nil)
	}
	destChain := req.DestinationChain
	if destChain == "" {
		destChain = p.Catalogue.HubChain()
	}
	for _, chain := range append(append([]string{}, req.SourceChains...), destChain) {
		if err := validateGatewayCapable(p.Catalogue, chain); err != nil {
			return nil, err
		}
	}

	balances := p.fanOutOnChainBalances(ctx, req.WalletAddress, req.SourceChains)

	type source struct {
		chain   string
		deposit *fmtAmount
		burn    *fmtAmount
	}
	var sources []source
	for _, chain := range req.SourceChains {
		bal := balances[chain]
		if bal == nil || bal.Sign() <= 0 {
			continue
		}
		burn := amountmath.NetBurnAmount(bal)
		sources = append(sources, source{chain: chain, deposit: newFmtAmount(bal), burn: newFmtAmount(burn)})
	}
	if len(sources) == 0 {
		return nil, engineerr.NewValidation(engineerr.CodeInsufficientBalance, "No on-chain USDC balance found on specified chains", nil)
	}

	sourceChains := make([]string, len(sources))
	burnAmounts := make([]*fmtAmount, len(sources))
	for i, s := range sources {
		sourceChains[i] = s.chain
		burnAmounts[i] = s.burn
	}
	totalBurn := sumFmtAmounts(burnAmounts)

	authorized := p.fanOutDelegateAuthorization(ctx, req.WalletAddress, req.DelegateAddress, sourceChains)

	feeRaw, err := amountmath.FeeRaw(totalBurn.minor, amountmath.BatchFeePercent)
	if err != nil {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidAmount, "failed to compute collect fee: "+err.Error(), err)
	}

	now := p.now()
	opID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("planner: failed to generate operation id: %w", err)
	}

	op := &models.Operation{
		ID: opID, UserID: req.UserID, Type: models.OperationCollect,
		Status: models.OperationAwaitingSignature, CreatedAt: now,
		FeeAmount: amountmath.FormatUSDC(feeRaw), FeePercent: amountmath.BatchFeePercent,
	}

	stepIndex := 0
	var sourceSummaries []models.SourceSummary
	var depositSteps, burnSteps []*models.Step

	for _, s := range sources {
		info, _ := p.Catalogue.Lookup(s.chain)
		needsDelegate := !authorized[s.chain]

		calls, err := callbuilder.BuildApproveAndDeposit(info.GatewayWalletAddress, info.USDCAddress, s.deposit.minor, req.DelegateAddress, needsDelegate)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to build deposit calls for %s: %w", s.chain, err)
		}
		callData, err := json.Marshal(calls)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to encode call data: %w", err)
		}

		stepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		depositStep := newStep(stepID, opID, stepIndex, s.chain, models.StepApproveAndDeposit, models.StepAwaitingSignature, now)
		depositStep.CallData = callData
		stepIndex++
		depositSteps = append(depositSteps, depositStep)

		op.SignRequests = append(op.SignRequests, models.SignRequest{
			StepID: depositStep.ID, Chain: s.chain, Type: depositStep.Type, Calls: calls,
			Description: "Approve and deposit " + s.deposit.decimal + " USDC", ServerSide: false,
		})
		sourceSummaries = append(sourceSummaries, models.SourceSummary{
			Chain: s.chain, DepositAmount: s.deposit.decimal, BurnAmount: s.burn.decimal,
		})
	}

	for _, s := range sources {
		stepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		burnStep := newStep(stepID, opID, stepIndex, s.chain, models.StepBurnIntent, models.StepPending, now)
		burnStep.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataBurn, Burn: &models.BurnParams{
			SourceChain: s.chain, DestinationChain: destChain, Amount: s.burn.decimal,
			Depositor: req.WalletAddress, Recipient: req.WalletAddress,
		}}
		stepIndex++
		burnSteps = append(burnSteps, burnStep)
	}

	mintStepID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
	}
	mintStep := newStep(mintStepID, opID, stepIndex, destChain, models.StepMint, models.StepPending, now)

	op.Steps = append(op.Steps, depositSteps...)
	op.Steps = append(op.Steps, burnSteps...)
	op.Steps = append(op.Steps, mintStep)

	op.Summary = models.Summary{
		FeeAmount: op.FeeAmount, FeePercent: op.FeePercent,
		EstimatedTime: "15-20 minutes", Sources: sourceSummaries,
	}
	op.Status = op.DeriveStatus()

	if err := p.Store.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("planner: failed to persist collect operation: %w", err)
	}
	if p.Metrics != nil {
		p.Metrics.RecordOperation(string(op.Type), string(op.Status))
	}
	return op, nil
}
