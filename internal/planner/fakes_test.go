package planner

import (
	"context"
	"math/big"

	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/models"
)

// fakeGateway is a hand-rolled GatewayClient fake scripted per test, in the
// style of arcsign's src/chainadapter/tests/mocks/rpc_mock.go.
type fakeGateway struct {
	onChainBalances map[string]*big.Int
	deposited       []engineext.GatewayBalance
	authorized      map[string]bool
}

func (f *fakeGateway) GetBalance(ctx context.Context, walletAddress string) ([]engineext.GatewayBalance, error) {
	return f.deposited, nil
}

func (f *fakeGateway) GetOnChainBalance(ctx context.Context, chain, walletAddress string) (*big.Int, error) {
	if bal, ok := f.onChainBalances[chain]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeGateway) IsDelegateAuthorized(ctx context.Context, chain, depositor, delegate string) (bool, error) {
	return f.authorized[chain], nil
}

func (f *fakeGateway) CreateBurnIntent(ctx context.Context, req engineext.BurnIntentRequest) (*engineext.SignableBurnIntent, error) {
	return nil, nil
}

func (f *fakeGateway) SignAndSubmitBurnIntent(ctx context.Context, intent *engineext.SignableBurnIntent, delegatePrivKey string) (*engineext.BurnIntentResult, error) {
	return nil, nil
}

func (f *fakeGateway) ExecuteMint(ctx context.Context, destChain, attestation, operatorSignature, relayerPrivKey string) (string, error) {
	return "", nil
}

// fakeSwapRouter is a hand-rolled SwapRouterClient fake returning a
// scripted quote and a fixed call list.
type fakeSwapRouter struct {
	toAmount    *big.Int
	toAmountMin *big.Int
	err         error
}

func (f *fakeSwapRouter) GetQuote(ctx context.Context, req engineext.SwapQuoteRequest) (*engineext.SwapQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &engineext.SwapQuote{
		Tool: "fakeTool", Action: "swap",
		ToAmountMinor: f.toAmount, ToAmountMinMinor: f.toAmountMin,
		ExecutionDurationSeconds: 30,
		TransactionRequest:       models.CallSpec{To: "0x00000000000000000000000000000000000dd", Data: "0xswap"},
	}, nil
}

func (f *fakeSwapRouter) BuildSwapCalls(ctx context.Context, quote *engineext.SwapQuote, fromToken string, amountMinor *big.Int) ([]models.CallSpec, error) {
	return []models.CallSpec{quote.TransactionRequest}, nil
}
