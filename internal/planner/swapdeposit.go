package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/callbuilder"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/models"
)

// SwapDepositRequest is the input to PrepareSwapDeposit (spec.md §4.4).
type SwapDepositRequest struct {
	UserID          string
	WalletAddress   string
	DelegateAddress string
	SourceChain     string
	SourceToken     string
	Amount          string
	TokenDecimals   int // defaults to 18 when zero
	Slippage        *int
}

// PrepareSwapDeposit plans converting an arbitrary token on SourceChain into
// USDC and depositing it into the gateway, burning to the hub afterward
// when SourceChain is not itself the hub.
func (p *Planner) PrepareSwapDeposit(ctx context.Context, req SwapDepositRequest) (*models.Operation, error) {
	info, ok := p.Catalogue.Lookup(req.SourceChain)
	if !ok || !info.GatewayCapable || !info.SupportsSmartAccount {
		return nil, engineerr.NewValidation(engineerr.CodeUnsupportedChain, "chain does not support the smart-account gateway flow: "+req.SourceChain, nil)
	}

	tokenDecimals := req.TokenDecimals
	if tokenDecimals == 0 {
		tokenDecimals = 18
	}
	amount, err := amountmath.ParseDecimal(req.Amount, tokenDecimals)
	if err != nil {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidAmount, "invalid swap-deposit amount: "+err.Error(), err)
	}

	slippage := amountmath.EffectiveSwapSlippage(amount, req.Slippage)
	quote, err := p.SwapRouter.GetQuote(ctx, engineext.SwapQuoteRequest{
		FromChain: req.SourceChain, ToChain: req.SourceChain, FromToken: req.SourceToken, ToToken: info.USDCAddress,
		FromAmount: amount, FromAddress: req.WalletAddress, SlippageBps: slippage,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: failed to fetch swap-deposit quote: %w", err)
	}
	depositAmount := newFmtAmount(quote.ToAmountMinMinor)

	swapCalls, err := p.SwapRouter.BuildSwapCalls(ctx, quote, req.SourceToken, amount)
	if err != nil {
		return nil, fmt.Errorf("planner: failed to build swap calls: %w", err)
	}

	authorized := p.fanOutDelegateAuthorization(ctx, req.WalletAddress, req.DelegateAddress, []string{req.SourceChain})
	delegateNeeded := !authorized[req.SourceChain]

	swapCall := models.CallSpec{}
	if len(swapCalls) > 0 {
		swapCall = swapCalls[len(swapCalls)-1]
	}
	calls, err := callbuilder.BuildSwapThenDeposit(swapCall, info.GatewayWalletAddress, info.USDCAddress, depositAmount.minor, req.DelegateAddress, delegateNeeded)
	if err != nil {
		return nil, fmt.Errorf("planner: failed to compose swap-then-deposit calls: %w", err)
	}
	callData, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("planner: failed to encode call data: %w", err)
	}

	now := p.now()
	opID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("planner: failed to generate operation id: %w", err)
	}

	op := &models.Operation{
		ID: opID, UserID: req.UserID, Type: models.OperationSwapDeposit,
		Status: models.OperationAwaitingSignature, CreatedAt: now,
		FeeAmount: "0.000000", FeePercent: "0",
	}

	stepIndex := 0
	swapStepID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
	}
	swapStep := newStep(swapStepID, opID, stepIndex, req.SourceChain, models.StepLifiSwap, models.StepAwaitingSignature, now)
	swapStep.CallData = callData
	stepIndex++
	op.Steps = append(op.Steps, swapStep)
	op.SignRequests = append(op.SignRequests, models.SignRequest{
		StepID: swapStep.ID, Chain: req.SourceChain, Type: swapStep.Type, Calls: calls,
		Description: "Swap " + req.Amount + " into USDC and deposit", ServerSide: false,
	})

	hub := p.Catalogue.HubChain()
	if req.SourceChain != hub {
		burnAmount := newFmtAmount(amountmath.NetBurnAmount(depositAmount.minor))

		burnStepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		burnStep := newStep(burnStepID, opID, stepIndex, req.SourceChain, models.StepBurnIntent, models.StepPending, now)
		burnStep.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataBurn, Burn: &models.BurnParams{
			SourceChain: req.SourceChain, DestinationChain: hub, Amount: burnAmount.decimal,
			Depositor: req.WalletAddress, Recipient: req.WalletAddress,
		}}
		stepIndex++
		op.Steps = append(op.Steps, burnStep)

		mintStepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		mintStep := newStep(mintStepID, opID, stepIndex, hub, models.StepMint, models.StepPending, now)
		stepIndex++
		op.Steps = append(op.Steps, mintStep)
	}

	op.Summary = models.Summary{
		FeeAmount: op.FeeAmount, FeePercent: op.FeePercent, EstimatedTime: "5-20 minutes",
		SwapEstimates: []models.SwapEstimate{{
			StepID: swapStep.ID, OutputToken: info.USDCAddress,
			EstimatedOutput: amountmath.FormatUSDC(quote.ToAmountMinor), MinimumOutput: amountmath.FormatUSDC(quote.ToAmountMinMinor),
			EstimatedDurationS: quote.ExecutionDurationSeconds,
		}},
	}

	op.Status = op.DeriveStatus()

	if err := p.Store.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("planner: failed to persist swap-deposit operation: %w", err)
	}
	if p.Metrics != nil {
		p.Metrics.RecordOperation(string(op.Type), string(op.Status))
	}
	return op, nil
}
