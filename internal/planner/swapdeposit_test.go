package planner

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/opsengine/internal/models"
)

func TestPrepareSwapDepositOnHubChainEmitsSwapOnly(t *testing.T) {
	gw := &fakeGateway{authorized: map[string]bool{"ETHEREUM": true}}
	sr := &fakeSwapRouter{toAmount: big.NewInt(995_000_000), toAmountMin: big.NewInt(980_000_000)}
	p, _ := newTestPlanner(gw, sr)

	op, err := p.PrepareSwapDeposit(t.Context(), SwapDepositRequest{
		UserID: "u1", WalletAddress: "0xw", DelegateAddress: "0xd",
		SourceChain: "ETHEREUM", SourceToken: "0xTOKEN", Amount: "1", TokenDecimals: 18,
	})
	require.NoError(t, err)

	require.Len(t, op.Steps, 1)
	assert.Equal(t, models.StepLifiSwap, op.Steps[0].Type)
	assert.Equal(t, models.StepAwaitingSignature, op.Steps[0].Status)
	assert.NotEmpty(t, op.Steps[0].CallData)
	assert.Equal(t, models.OperationSwapDeposit, op.Type)
}

func TestPrepareSwapDepositOnNonHubChainEmitsBurnAndMint(t *testing.T) {
	gw := &fakeGateway{authorized: map[string]bool{"BASE": true}}
	sr := &fakeSwapRouter{toAmount: big.NewInt(995_000_000), toAmountMin: big.NewInt(980_000_000)}
	p, _ := newTestPlanner(gw, sr)

	op, err := p.PrepareSwapDeposit(t.Context(), SwapDepositRequest{
		UserID: "u1", WalletAddress: "0xw", DelegateAddress: "0xd",
		SourceChain: "BASE", SourceToken: "0xTOKEN", Amount: "1", TokenDecimals: 18,
	})
	require.NoError(t, err)

	require.Len(t, op.Steps, 3)
	assert.Equal(t, models.StepLifiSwap, op.Steps[0].Type)
	assert.Equal(t, models.StepBurnIntent, op.Steps[1].Type)
	assert.Equal(t, models.StepPending, op.Steps[1].Status)
	assert.Equal(t, models.StepMint, op.Steps[2].Type)
	assert.Equal(t, "ETHEREUM", op.Steps[2].Chain)
}

func TestPrepareSwapDepositRejectsUnsupportedChain(t *testing.T) {
	gw := &fakeGateway{}
	p, _ := newTestPlanner(gw, nil)

	_, err := p.PrepareSwapDeposit(t.Context(), SwapDepositRequest{
		UserID: "u1", WalletAddress: "0xw", SourceChain: "NONEXISTENT", SourceToken: "0xTOKEN", Amount: "1",
	})
	require.Error(t, err)
}
