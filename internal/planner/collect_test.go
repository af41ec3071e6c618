package planner

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/opsengine/internal/catalogue"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/store"
)

func newTestPlanner(gw *fakeGateway, sr *fakeSwapRouter) (*Planner, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	p := New(catalogue.NewDefaultCatalogue(), gw, sr, mem, nil, zerolog.Nop())
	counter := 0
	p.NewID = func() (string, error) {
		counter++
		return fmt.Sprintf("id%d", counter), nil
	}
	p.Clock = func() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }
	return p, mem
}

func TestPrepareCollectFailsWithNoBalance(t *testing.T) {
	gw := &fakeGateway{onChainBalances: map[string]*big.Int{}, authorized: map[string]bool{}}
	p, mem := newTestPlanner(gw, nil)

	_, err := p.PrepareCollect(t.Context(), CollectRequest{
		UserID: "u1", WalletAddress: "0xw", DelegateAddress: "0xd",
		SourceChains: []string{"BASE", "ARBITRUM"},
	})
	require.Error(t, err)

	ops, total, err := mem.ListOperations(t.Context(), store.ListFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, ops)
}

func TestPrepareCollectEmitsDepositBurnMintSteps(t *testing.T) {
	gw := &fakeGateway{
		onChainBalances: map[string]*big.Int{"BASE": big.NewInt(100_000_000), "ARBITRUM": big.NewInt(0)},
		authorized:      map[string]bool{"BASE": false},
	}
	p, _ := newTestPlanner(gw, nil)

	op, err := p.PrepareCollect(t.Context(), CollectRequest{
		UserID: "u1", WalletAddress: "0xw", DelegateAddress: "0xd",
		SourceChains: []string{"BASE", "ARBITRUM"},
	})
	require.NoError(t, err)

	require.Len(t, op.Steps, 3) // one deposit (ARBITRUM dropped), one burn, one mint
	assert.Equal(t, models.StepApproveAndDeposit, op.Steps[0].Type)
	assert.Equal(t, models.StepAwaitingSignature, op.Steps[0].Status)
	assert.Equal(t, models.StepBurnIntent, op.Steps[1].Type)
	assert.Equal(t, models.StepPending, op.Steps[1].Status)
	assert.Equal(t, models.StepMint, op.Steps[2].Type)
	assert.Equal(t, "ETHEREUM", op.Steps[2].Chain) // default destination is HUB_CHAIN

	for i, s := range op.Steps {
		assert.Equal(t, i, s.StepIndex)
	}
	assert.Equal(t, models.OperationAwaitingSignature, op.Status)
	require.Len(t, op.Summary.Sources, 1)
	assert.Equal(t, "100.000000", op.Summary.Sources[0].DepositAmount)
}

var _ engineext.GatewayClient = (*fakeGateway)(nil)
