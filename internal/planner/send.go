package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/callbuilder"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/models"
)

// SendRecipient is one payout line of a SendRequest. An empty Address means
// "to self" on Chain — the bridge case.
type SendRecipient struct {
	Chain               string
	Address             string
	Amount              string
	OutputToken         string // empty means "plain USDC, no swap"
	OutputTokenDecimals int
	Slippage            *int // basis points
}

// SendRequest is the input to PrepareSend: the engine's single entry point
// for send, bridge, and batch-send (spec.md §4.3).
type SendRequest struct {
	UserID          string
	WalletAddress   string
	DelegateAddress string
	SourceChain     string // optional, defaults to the catalogue's HUB_CHAIN
	Recipients      []SendRecipient
}

type normalizedRecipient struct {
	chain               string
	address             string
	internal            bool
	amount              *fmtAmount
	outputToken         string
	outputTokenDecimals int
	slippageBps         *int
}

// PrepareSend plans a send, bridge, or batch-send depending on Recipients'
// shape: one recipient addressed to self is a bridge, one recipient
// addressed elsewhere is a send, more than one recipient is a batch send.
func (p *Planner) PrepareSend(ctx context.Context, req SendRequest) (*models.Operation, error) {
	if len(req.Recipients) == 0 {
		return nil, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "at least one recipient is required", nil)
	}
	sourceChain := req.SourceChain
	if sourceChain == "" {
		sourceChain = p.Catalogue.HubChain()
	}
	if err := validateGatewayCapable(p.Catalogue, sourceChain); err != nil {
		return nil, err
	}
	hub := p.Catalogue.HubChain()

	recipients := make([]normalizedRecipient, len(req.Recipients))
	for i, r := range req.Recipients {
		if err := validateGatewayCapable(p.Catalogue, r.Chain); err != nil {
			return nil, err
		}
		amount, err := amountmath.ParseUSDC(r.Amount)
		if err != nil {
			return nil, engineerr.NewValidation(engineerr.CodeInvalidAmount, "invalid amount for recipient on "+r.Chain+": "+err.Error(), err)
		}
		address := r.Address
		if address == "" {
			address = req.WalletAddress
		}
		recipients[i] = normalizedRecipient{
			chain: r.Chain, address: address, internal: sourceChain == r.Chain && r.Chain == hub,
			amount: newFmtAmount(amount), outputToken: r.OutputToken,
			outputTokenDecimals: r.OutputTokenDecimals, slippageBps: r.Slippage,
		}
	}

	opType := models.OperationBatchSend
	singleSend := false
	if len(recipients) == 1 {
		if req.Recipients[0].Address == "" {
			opType = models.OperationBridge
		} else {
			opType = models.OperationSend
			singleSend = true
		}
	}

	allInternal := true
	for _, r := range recipients {
		if !r.internal {
			allInternal = false
			break
		}
	}
	feePercent := amountmath.BatchFeePercent
	if singleSend {
		feePercent = amountmath.CrossChainFeePercent
	}
	if allInternal {
		feePercent = "0"
	}

	var crossChainAmounts []*big.Int
	for _, r := range recipients {
		if !r.internal {
			crossChainAmounts = append(crossChainAmounts, r.amount.minor)
		}
	}
	crossChainTotal := sumAmounts(crossChainAmounts)

	var needsDeposit bool
	var depositAmount *fmtAmount
	if crossChainTotal.Sign() > 0 {
		required := amountmath.GrossDepositAmount(crossChainTotal)

		balances, err := p.Gateway.GetBalance(ctx, req.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to fetch deposited balance: %w", err)
		}
		deposited := depositedOn(balances, sourceChain)

		if deposited.Cmp(required) < 0 {
			onChain, err := p.Gateway.GetOnChainBalance(ctx, sourceChain, req.WalletAddress)
			if err != nil {
				return nil, fmt.Errorf("planner: failed to fetch on-chain balance: %w", err)
			}
			combined := new(big.Int).Add(onChain, deposited)
			if combined.Cmp(required) < 0 {
				maxSendable := amountmath.NetBurnAmount(combined)
				return nil, engineerr.NewValidation(engineerr.CodeInsufficientBalance,
					fmt.Sprintf("insufficient balance to send; maximum sendable is %s USDC", amountmath.FormatUSDC(maxSendable)), nil)
			}
			shortfall := new(big.Int).Sub(required, deposited)
			amount := onChain
			if shortfall.Cmp(onChain) < 0 {
				amount = shortfall
			}
			depositAmount = newFmtAmount(amount)
			needsDeposit = true
		}
	}

	authorized := p.fanOutDelegateAuthorization(ctx, req.WalletAddress, req.DelegateAddress, []string{sourceChain})
	delegateNeeded := !authorized[sourceChain]

	now := p.now()
	opID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("planner: failed to generate operation id: %w", err)
	}

	totalFee, err := amountmath.FeeRaw(sumAmounts(amountsOf(recipients)), feePercent)
	if err != nil {
		return nil, fmt.Errorf("planner: failed to compute fee: %w", err)
	}

	op := &models.Operation{
		ID: opID, UserID: req.UserID, Type: opType, Status: models.OperationAwaitingSignature,
		CreatedAt: now, FeeAmount: amountmath.FormatUSDC(totalFee), FeePercent: feePercent,
	}
	estimatedTime := "instant"
	if !allInternal {
		estimatedTime = "15-20 minutes"
	}

	stepIndex := 0
	sourceInfo, _ := p.Catalogue.Lookup(sourceChain)

	switch {
	case needsDeposit:
		calls, err := callbuilder.BuildApproveAndDeposit(sourceInfo.GatewayWalletAddress, sourceInfo.USDCAddress, depositAmount.minor, req.DelegateAddress, delegateNeeded)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to build deposit calls: %w", err)
		}
		callData, err := json.Marshal(calls)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to encode call data: %w", err)
		}
		stepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		step := newStep(stepID, opID, stepIndex, sourceChain, models.StepApproveAndDeposit, models.StepAwaitingSignature, now)
		step.CallData = callData
		stepIndex++
		op.Steps = append(op.Steps, step)
		op.SignRequests = append(op.SignRequests, models.SignRequest{
			StepID: step.ID, Chain: sourceChain, Type: step.Type, Calls: calls,
			Description: "Approve and deposit " + depositAmount.decimal + " USDC", ServerSide: false,
		})
	case delegateNeeded:
		addDelegate, err := callbuilder.BuildAddDelegate(sourceInfo.GatewayWalletAddress, req.DelegateAddress)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to build add-delegate call: %w", err)
		}
		calls := []models.CallSpec{addDelegate}
		callData, err := json.Marshal(calls)
		if err != nil {
			return nil, fmt.Errorf("planner: failed to encode call data: %w", err)
		}
		stepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		step := newStep(stepID, opID, stepIndex, sourceChain, models.StepAddDelegate, models.StepAwaitingSignature, now)
		step.CallData = callData
		stepIndex++
		op.Steps = append(op.Steps, step)
		op.SignRequests = append(op.SignRequests, models.SignRequest{
			StepID: step.ID, Chain: sourceChain, Type: step.Type, Calls: calls,
			Description: "Authorize delegate to sign burn intents", ServerSide: false,
		})
	}

	var recipientSummaries []models.RecipientSummary
	var swapEstimates []models.SwapEstimate

	for _, r := range recipients {
		recipientSummaries = append(recipientSummaries, models.RecipientSummary{
			Chain: r.chain, Address: r.address, Amount: r.amount.decimal, Internal: r.internal,
		})

		if r.internal {
			stepID, err := p.newID()
			if err != nil {
				return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
			}
			step := newStep(stepID, opID, stepIndex, hub, models.StepTransfer, models.StepAwaitingSignature, now)
			step.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataTransfer, Transfer: &models.TransferParams{
				To: r.address, Amount: r.amount.decimal,
			}}
			stepIndex++
			op.Steps = append(op.Steps, step)
			op.SignRequests = append(op.SignRequests, models.SignRequest{
				StepID: step.ID, Chain: hub, Type: step.Type,
				Description: "Transfer " + r.amount.decimal + " USDC to " + r.address, ServerSide: false,
			})
			continue
		}

		if r.outputToken == "" {
			burnStepID, err := p.newID()
			if err != nil {
				return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
			}
			burnStep := newStep(burnStepID, opID, stepIndex, sourceChain, models.StepBurnIntent, models.StepPending, now)
			burnStep.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataBurn, Burn: &models.BurnParams{
				SourceChain: sourceChain, DestinationChain: r.chain, Amount: r.amount.decimal,
				Depositor: req.WalletAddress, Recipient: r.address,
			}}
			stepIndex++
			op.Steps = append(op.Steps, burnStep)
			op.SignRequests = append(op.SignRequests, models.SignRequest{
				StepID: burnStep.ID, Chain: sourceChain, Type: burnStep.Type,
				Description: "Burn " + r.amount.decimal + " USDC for cross-chain delivery", ServerSide: true,
			})

			mintStepID, err := p.newID()
			if err != nil {
				return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
			}
			mintStep := newStep(mintStepID, opID, stepIndex, r.chain, models.StepMint, models.StepPending, now)
			stepIndex++
			op.Steps = append(op.Steps, mintStep)
			continue
		}

		slippage := amountmath.EffectiveSwapSlippage(r.amount.minor, r.slippageBps)
		quote, quoteErr := p.SwapRouter.GetQuote(ctx, engineext.SwapQuoteRequest{
			FromChain: hub, ToChain: r.chain, FromToken: sourceInfo.USDCAddress, ToToken: r.outputToken,
			FromAmount: r.amount.minor, FromAddress: req.WalletAddress, ToAddress: r.address, SlippageBps: slippage,
		})
		if quoteErr != nil {
			p.Logger.Warn().Str("chain", r.chain).Err(quoteErr).Msg("swap quote failed during planning, falling back to deferred swap")
		}

		destInfo, _ := p.Catalogue.Lookup(r.chain)
		var onChainCoversAmount bool
		if singleSend && sourceChain == r.chain && quoteErr == nil {
			onChainBal, err := p.Gateway.GetOnChainBalance(ctx, r.chain, req.WalletAddress)
			if err == nil && onChainBal.Cmp(r.amount.minor) >= 0 {
				onChainCoversAmount = true
			}
		}

		burnStepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		burnStep := newStep(burnStepID, opID, stepIndex, sourceChain, models.StepBurnIntent, models.StepPending, now)
		burnStep.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataBurn, Burn: &models.BurnParams{
			SourceChain: sourceChain, DestinationChain: r.chain, Amount: r.amount.decimal,
			Depositor: req.WalletAddress, Recipient: req.WalletAddress,
		}}
		stepIndex++

		mintStepID, err := p.newID()
		if err != nil {
			return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
		}
		mintStep := newStep(mintStepID, opID, stepIndex, r.chain, models.StepMint, models.StepPending, now)
		stepIndex++

		if onChainCoversAmount {
			burnStep.Status = models.StepSkipped
			mintStep.Status = models.StepSkipped

			swapCalls, err := p.SwapRouter.BuildSwapCalls(ctx, quote, destInfo.USDCAddress, r.amount.minor)
			if err != nil {
				return nil, fmt.Errorf("planner: failed to build same-chain swap calls: %w", err)
			}
			callData, err := json.Marshal(swapCalls)
			if err != nil {
				return nil, fmt.Errorf("planner: failed to encode call data: %w", err)
			}
			swapStepID, err := p.newID()
			if err != nil {
				return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
			}
			swapStep := newStep(swapStepID, opID, stepIndex, r.chain, models.StepLifiSwap, models.StepAwaitingSignature, now)
			swapStep.CallData = callData
			swapStep.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataSwap, Swap: &models.SwapParams{
				OutputToken: r.outputToken, OutputTokenDecimals: r.outputTokenDecimals,
				Slippage: fmt.Sprintf("%d", slippage), RecipientAddress: r.address, USDCAmount: r.amount.decimal,
			}}
			stepIndex++
			op.Steps = append(op.Steps, burnStep, mintStep, swapStep)
			op.SignRequests = append(op.SignRequests, models.SignRequest{
				StepID: swapStep.ID, Chain: r.chain, Type: swapStep.Type, Calls: swapCalls,
				Description: "Swap USDC into " + r.outputToken, ServerSide: false,
			})
		} else {
			op.Steps = append(op.Steps, burnStep, mintStep)
			op.SignRequests = append(op.SignRequests, models.SignRequest{
				StepID: burnStep.ID, Chain: sourceChain, Type: burnStep.Type,
				Description: "Burn " + r.amount.decimal + " USDC for cross-chain delivery", ServerSide: true,
			})

			swapStepID, err := p.newID()
			if err != nil {
				return nil, fmt.Errorf("planner: failed to generate step id: %w", err)
			}
			swapStep := newStep(swapStepID, opID, stepIndex, r.chain, models.StepLifiSwap, models.StepPending, now)
			swapStep.BurnIntentData = models.BurnIntentData{Kind: models.BurnDataSwap, Swap: &models.SwapParams{
				OutputToken: r.outputToken, OutputTokenDecimals: r.outputTokenDecimals,
				Slippage: fmt.Sprintf("%d", slippage), RecipientAddress: r.address, USDCAmount: r.amount.decimal,
			}}
			stepIndex++
			op.Steps = append(op.Steps, swapStep)

			if quoteErr == nil {
				swapEstimates = append(swapEstimates, models.SwapEstimate{
					StepID: swapStep.ID, OutputToken: r.outputToken,
					EstimatedOutput: amountmath.FormatUSDC(quote.ToAmountMinor),
					MinimumOutput:   amountmath.FormatUSDC(quote.ToAmountMinMinor),
					EstimatedDurationS: quote.ExecutionDurationSeconds,
				})
			}
		}
	}

	op.Summary = models.Summary{
		FeeAmount: op.FeeAmount, FeePercent: op.FeePercent, EstimatedTime: estimatedTime,
		Recipients: recipientSummaries, SwapEstimates: swapEstimates,
	}
	op.Status = op.DeriveStatus()

	if err := p.Store.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("planner: failed to persist send operation: %w", err)
	}
	if p.Metrics != nil {
		p.Metrics.RecordOperation(string(op.Type), string(op.Status))
	}
	return op, nil
}

func depositedOn(balances []engineext.GatewayBalance, chain string) *big.Int {
	for _, b := range balances {
		if b.Chain == chain {
			return b.BalanceMinor
		}
	}
	return big.NewInt(0)
}

func amountsOf(recipients []normalizedRecipient) []*big.Int {
	out := make([]*big.Int, len(recipients))
	for i, r := range recipients {
		out[i] = r.amount.minor
	}
	return out
}
