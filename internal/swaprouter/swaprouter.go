// Package swaprouter implements the HTTP facade over the swap aggregator
// (spec.md §6, "Swap router client"): same-chain/cross-chain quote lookup
// and the approve+swap call composition the Planner and Reconciler embed
// into LIFI_SWAP steps. It satisfies internal/engineext.SwapRouterClient
// and reuses internal/httpclient's failover transport, the same way
// internal/gateway does.
package swaprouter

import (
	"context"
	"math/big"
	"time"

	"github.com/arcsign/opsengine/internal/callbuilder"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/httpclient"
	"github.com/arcsign/opsengine/internal/metrics"
	"github.com/arcsign/opsengine/internal/models"
)

// Client is the concrete HTTP SwapRouterClient.
type Client struct {
	http    *httpclient.Client
	metrics *metrics.Metrics
}

// New wraps an already-configured httpclient.Client. m may be nil to skip
// instrumentation (used by tests).
func New(http *httpclient.Client, m *metrics.Metrics) *Client {
	return &Client{http: http, metrics: m}
}

var _ engineext.SwapRouterClient = (*Client)(nil)

type quoteRequest struct {
	FromChain    string `json:"fromChain"`
	ToChain      string `json:"toChain"`
	FromToken    string `json:"fromToken"`
	ToToken      string `json:"toToken"`
	FromAmount   string `json:"fromAmount"`
	FromAddress  string `json:"fromAddress"`
	ToAddress    string `json:"toAddress,omitempty"`
	Slippage     int    `json:"slippage"`
}

type quoteEstimate struct {
	ToAmountMinor    string `json:"toAmount_minor"`
	ToAmountMinMinor string `json:"toAmountMin_minor"`
	ExecutionDurationS int  `json:"executionDuration_s"`
}

type transactionRequest struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
}

type quoteResponse struct {
	Tool               string             `json:"tool"`
	Action             string             `json:"action"`
	Estimate           quoteEstimate      `json:"estimate"`
	TransactionRequest transactionRequest `json:"transactionRequest"`
}

func (c *Client) GetQuote(ctx context.Context, req engineext.SwapQuoteRequest) (*engineext.SwapQuote, error) {
	if req.FromAmount == nil || req.FromAmount.Sign() <= 0 {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidAmount, "swap quote amount must be positive", nil)
	}

	wireReq := quoteRequest{
		FromChain:   req.FromChain,
		ToChain:     req.ToChain,
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		FromAmount:  req.FromAmount.String(),
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Slippage:    req.SlippageBps,
	}

	var resp quoteResponse
	start := time.Now()
	err := c.http.DoJSON(ctx, "POST", "/v1/quote", wireReq, &resp)
	if c.metrics != nil {
		c.metrics.RecordSwapRouterCall("GetQuote", time.Since(start), err == nil)
	}
	if err != nil {
		return nil, classifyError(err, "fetch swap quote")
	}

	toAmount, ok := new(big.Int).SetString(resp.Estimate.ToAmountMinor, 10)
	if !ok {
		return nil, engineerr.NewTransient(engineerr.CodeSwapRouterUnavailable, "swap router returned a non-integer amount", nil)
	}
	toAmountMin, ok := new(big.Int).SetString(resp.Estimate.ToAmountMinMinor, 10)
	if !ok {
		return nil, engineerr.NewTransient(engineerr.CodeSwapRouterUnavailable, "swap router returned a non-integer minimum amount", nil)
	}

	return &engineext.SwapQuote{
		Tool:                     resp.Tool,
		Action:                   resp.Action,
		ToAmountMinor:            toAmount,
		ToAmountMinMinor:         toAmountMin,
		ExecutionDurationSeconds: resp.Estimate.ExecutionDurationS,
		TransactionRequest: models.CallSpec{
			To:    resp.TransactionRequest.To,
			Data:  resp.TransactionRequest.Data,
			Value: resp.TransactionRequest.Value,
		},
	}, nil
}

func (c *Client) BuildSwapCalls(ctx context.Context, quote *engineext.SwapQuote, fromToken string, amountMinor *big.Int) ([]models.CallSpec, error) {
	if quote == nil {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidAmount, "swap quote is required to build calls", nil)
	}

	calls := make([]models.CallSpec, 0, 2)
	if fromToken != callbuilder.NativeTokenPlaceholder {
		approveCall, err := callbuilder.BuildApprove(fromToken, quote.TransactionRequest.To, amountMinor)
		if err != nil {
			return nil, engineerr.NewValidation(engineerr.CodeInvalidAddress, "failed to encode swap approve call", err)
		}
		calls = append(calls, approveCall)
	}
	calls = append(calls, quote.TransactionRequest)
	return calls, nil
}
