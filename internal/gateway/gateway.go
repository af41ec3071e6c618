// Package gateway implements the HTTP facade over the cross-chain USDC
// settlement service (spec.md §6, "Gateway client"): deposited-balance
// queries, on-chain balance reads, delegate-authorization checks, burn
// intent construction/submission, and destination-chain mint execution. It
// satisfies internal/engineext.GatewayClient and is built on
// internal/httpclient's failover transport, the same shape arcsign's
// chainadapter/provider implementations sit behind.
package gateway

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/arcsign/opsengine/internal/amountmath"
	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/httpclient"
	"github.com/arcsign/opsengine/internal/metrics"
)

// Client is the concrete HTTP GatewayClient.
type Client struct {
	http    *httpclient.Client
	metrics *metrics.Metrics
}

// New wraps an already-configured httpclient.Client. m may be nil to skip
// instrumentation (used by tests).
func New(http *httpclient.Client, m *metrics.Metrics) *Client {
	return &Client{http: http, metrics: m}
}

var _ engineext.GatewayClient = (*Client)(nil)

type balanceEntry struct {
	Chain        string `json:"chain"`
	BalanceMinor string `json:"balanceMinor"`
}

func (c *Client) GetBalance(ctx context.Context, walletAddress string) ([]engineext.GatewayBalance, error) {
	var resp []balanceEntry
	err := c.call(ctx, "GetBalance", func() error {
		return c.http.DoJSON(ctx, "GET", "/v1/wallets/"+walletAddress+"/balances", nil, &resp)
	})
	if err != nil {
		return nil, classifyHTTPError(err, "fetch deposited balances")
	}

	out := make([]engineext.GatewayBalance, 0, len(resp))
	for _, e := range resp {
		minor, ok := new(big.Int).SetString(e.BalanceMinor, 10)
		if !ok {
			return nil, engineerr.NewTransient(engineerr.CodeGatewayUnavailable, "gateway returned a non-integer balance", nil)
		}
		out = append(out, engineext.GatewayBalance{Chain: e.Chain, BalanceMinor: minor})
	}
	return out, nil
}

type onChainBalanceResp struct {
	BalanceMinor string `json:"balanceMinor"`
}

func (c *Client) GetOnChainBalance(ctx context.Context, chain, walletAddress string) (*big.Int, error) {
	var resp onChainBalanceResp
	err := c.call(ctx, "GetOnChainBalance", func() error {
		return c.http.DoJSON(ctx, "GET", "/v1/chains/"+chain+"/wallets/"+walletAddress+"/onchain-balance", nil, &resp)
	})
	if err != nil {
		return nil, classifyHTTPError(err, "fetch on-chain balance")
	}

	minor, ok := new(big.Int).SetString(resp.BalanceMinor, 10)
	if !ok {
		return nil, engineerr.NewTransient(engineerr.CodeGatewayUnavailable, "gateway returned a non-integer on-chain balance", nil)
	}
	return minor, nil
}

type authorizedResp struct {
	Authorized bool `json:"authorized"`
}

func (c *Client) IsDelegateAuthorized(ctx context.Context, chain, depositor, delegate string) (bool, error) {
	var resp authorizedResp
	err := c.call(ctx, "IsDelegateAuthorized", func() error {
		return c.http.DoJSON(ctx, "GET",
			fmt.Sprintf("/v1/chains/%s/delegates/%s/%s/authorized", chain, depositor, delegate), nil, &resp)
	})
	if err != nil {
		// Per the Design Note on parallel chain probes (spec.md §9), a
		// failed lookup counts as not-authorized rather than aborting the
		// caller's fan-out.
		return false, nil
	}
	return resp.Authorized, nil
}

func (c *Client) CreateBurnIntent(ctx context.Context, req engineext.BurnIntentRequest) (*engineext.SignableBurnIntent, error) {
	if req.SourceChain == "" || req.DestChain == "" {
		return nil, engineerr.NewValidation(engineerr.CodeUnsupportedChain, "source and destination chain are required", nil)
	}
	if req.AmountMinor == nil || req.AmountMinor.Sign() <= 0 {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidAmount, "burn intent amount must be positive", nil)
	}

	maxFee := req.MaxFeeMinor
	if maxFee == nil {
		maxFee = amountmath.CalcMaxFee(req.AmountMinor)
	}

	intent := &engineext.SignableBurnIntent{
		SourceChain: req.SourceChain,
		DestChain:   req.DestChain,
		AmountMinor: new(big.Int).Set(req.AmountMinor),
		Depositor:   req.Depositor,
		Recipient:   req.Recipient,
		MaxFeeMinor: maxFee,
	}
	intent.Payload = burnIntentDigest(intent)
	return intent, nil
}

type signAndSubmitRequest struct {
	SourceChain  string `json:"sourceChain"`
	DestChain    string `json:"destChain"`
	AmountMinor  string `json:"amountMinor"`
	Depositor    string `json:"depositor"`
	Recipient    string `json:"recipient"`
	MaxFeeMinor  string `json:"maxFeeMinor"`
	Signature    string `json:"signature"`
}

type signAndSubmitResponse struct {
	Attestation       string `json:"attestation"`
	OperatorSignature string `json:"operatorSignature"`
}

func (c *Client) SignAndSubmitBurnIntent(ctx context.Context, intent *engineext.SignableBurnIntent, delegatePrivKey string) (*engineext.BurnIntentResult, error) {
	sig, err := signDigest(intent.Payload, delegatePrivKey)
	if err != nil {
		return nil, engineerr.NewValidation(engineerr.CodeInvalidAddress, "failed to sign burn intent", err)
	}

	req := signAndSubmitRequest{
		SourceChain: intent.SourceChain,
		DestChain:   intent.DestChain,
		AmountMinor: intent.AmountMinor.String(),
		Depositor:   intent.Depositor,
		Recipient:   intent.Recipient,
		MaxFeeMinor: intent.MaxFeeMinor.String(),
		Signature:   sig,
	}

	var resp signAndSubmitResponse
	err = c.call(ctx, "SignAndSubmitBurnIntent", func() error {
		return c.http.DoJSON(ctx, "POST", "/v1/burn-intents", req, &resp)
	})
	if err != nil {
		return nil, classifyBurnIntentError(err)
	}
	return &engineext.BurnIntentResult{Attestation: resp.Attestation, OperatorSignature: resp.OperatorSignature}, nil
}

type executeMintRequest struct {
	DestChain         string `json:"destChain"`
	Attestation       string `json:"attestation"`
	OperatorSignature string `json:"operatorSignature"`
	RelayerSignature  string `json:"relayerSignature"`
}

type executeMintResponse struct {
	TxHash string `json:"txHash"`
}

func (c *Client) ExecuteMint(ctx context.Context, destChain, attestation, operatorSignature, relayerPrivKey string) (string, error) {
	relayerSig, err := signDigest(mintDigest(destChain, attestation, operatorSignature), relayerPrivKey)
	if err != nil {
		return "", engineerr.NewValidation(engineerr.CodeInvalidAddress, "failed to sign mint request", err)
	}

	req := executeMintRequest{
		DestChain:         destChain,
		Attestation:       attestation,
		OperatorSignature: operatorSignature,
		RelayerSignature:  relayerSig,
	}

	var resp executeMintResponse
	err = c.call(ctx, "ExecuteMint", func() error {
		return c.http.DoJSON(ctx, "POST", "/v1/mints", req, &resp)
	})
	if err != nil {
		return "", classifyMintError(err)
	}
	return resp.TxHash, nil
}

// call wraps fn with gateway call metrics, if configured.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	start := time.Now()
	err := fn()
	if c.metrics != nil {
		c.metrics.RecordGatewayCall(method, time.Since(start), err == nil)
	}
	return err
}
