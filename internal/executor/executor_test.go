package executor

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/store"
)

// fakeGateway is a hand-rolled GatewayClient fake, in the style of
// internal/advance's test fake.
type fakeGateway struct {
	attestation string
	submitErr   error
	txHash      string
	mintErr     error
}

func (f *fakeGateway) GetBalance(ctx context.Context, walletAddress string) ([]engineext.GatewayBalance, error) {
	return nil, nil
}
func (f *fakeGateway) GetOnChainBalance(ctx context.Context, chain, walletAddress string) (*big.Int, error) {
	return nil, nil
}
func (f *fakeGateway) IsDelegateAuthorized(ctx context.Context, chain, depositor, delegate string) (bool, error) {
	return true, nil
}
func (f *fakeGateway) CreateBurnIntent(ctx context.Context, req engineext.BurnIntentRequest) (*engineext.SignableBurnIntent, error) {
	return &engineext.SignableBurnIntent{
		SourceChain: req.SourceChain, DestChain: req.DestChain, AmountMinor: req.AmountMinor,
		Depositor: req.Depositor, Recipient: req.Recipient, Payload: []byte("digest"),
	}, nil
}
func (f *fakeGateway) SignAndSubmitBurnIntent(ctx context.Context, intent *engineext.SignableBurnIntent, delegatePrivKey string) (*engineext.BurnIntentResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &engineext.BurnIntentResult{Attestation: f.attestation, OperatorSignature: "opsig"}, nil
}
func (f *fakeGateway) ExecuteMint(ctx context.Context, destChain, attestation, operatorSignature, relayerPrivKey string) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	return f.txHash, nil
}

type fakeDelegateKeys struct{ key string }

func (f fakeDelegateKeys) DelegateKeyFor(ctx context.Context, userID string) (string, error) {
	return f.key, nil
}

func newAwaitingOperation() *models.Operation {
	return &models.Operation{
		ID: "op1", UserID: "user1", Status: models.OperationAwaitingSignature,
		SignRequests: []models.SignRequest{{StepID: "s0", Chain: "ARBITRUM", Type: models.StepApproveAndDeposit}},
		Steps: []*models.Step{
			{
				ID: "s0", OperationID: "op1", StepIndex: 0, Chain: "ARBITRUM",
				Type: models.StepApproveAndDeposit, Status: models.StepAwaitingSignature,
			},
			{
				ID: "s1", OperationID: "op1", StepIndex: 1, Chain: "ARBITRUM",
				Type: models.StepBurnIntent, Status: models.StepPending,
				BurnIntentData: models.BurnIntentData{Kind: models.BurnDataBurn, Burn: &models.BurnParams{
					SourceChain: "ARBITRUM", DestinationChain: "ETHEREUM", Amount: "100.000000",
					Depositor: "0xd", Recipient: "0xr",
				}},
			},
			{
				ID: "s2", OperationID: "op1", StepIndex: 2, Chain: "ETHEREUM",
				Type: models.StepMint, Status: models.StepPending,
			},
		},
	}
}

func newTestExecutor(gw *fakeGateway, relayerKey string) (*Executor, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	e := New(mem, gw, fakeDelegateKeys{key: "key"}, relayerKey, nil, zerolog.Nop())
	return e, mem
}

func TestSubmitOperationConfirmsReportedStepAndAdvancesBurn(t *testing.T) {
	gw := &fakeGateway{attestation: "0xattestation", txHash: "0xtxhash"}
	e, mem := newTestExecutor(gw, "relayerkey")
	require.NoError(t, mem.CreateOperation(t.Context(), newAwaitingOperation()))

	op, err := e.SubmitOperation(t.Context(), "user1", "op1", []SignatureReport{
		{StepID: "s0", TxHash: "0xdeposit"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StepConfirmed, op.Steps[0].Status)
	assert.Equal(t, "0xdeposit", op.Steps[0].TxHash)
	assert.Empty(t, op.SignRequests)
	assert.Equal(t, models.StepConfirmed, op.Steps[1].Status)
	assert.Equal(t, models.StepConfirmed, op.Steps[2].Status)
	assert.Equal(t, "0xtxhash", op.Steps[2].TxHash)
	assert.Equal(t, models.OperationCompleted, op.Status)

	persisted, err := mem.GetOperation(t.Context(), "user1", "op1")
	require.NoError(t, err)
	assert.Equal(t, models.OperationCompleted, persisted.Status)
}

func TestSubmitOperationLeavesBurnPendingOnTransientFailure(t *testing.T) {
	gw := &fakeGateway{submitErr: engineerr.NewTransient(engineerr.CodeGatewayUnavailable, "down", nil)}
	e, mem := newTestExecutor(gw, "relayerkey")
	require.NoError(t, mem.CreateOperation(t.Context(), newAwaitingOperation()))

	op, err := e.SubmitOperation(t.Context(), "user1", "op1", []SignatureReport{
		{StepID: "s0", TxHash: "0xdeposit"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StepPending, op.Steps[1].Status)
	assert.Equal(t, models.OperationProcessing, op.Status)
}

func TestSubmitOperationRejectsWhenNotAwaitingSignature(t *testing.T) {
	gw := &fakeGateway{}
	e, mem := newTestExecutor(gw, "")
	op := newAwaitingOperation()
	op.Status = models.OperationProcessing
	require.NoError(t, mem.CreateOperation(t.Context(), op))

	_, err := e.SubmitOperation(t.Context(), "user1", "op1", nil)
	require.Error(t, err)
}

func TestSubmitOperationReturnsNotFoundForUnknownOperationID(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newTestExecutor(gw, "")

	_, err := e.SubmitOperation(t.Context(), "user1", "does-not-exist", nil)
	require.Error(t, err)
	assert.True(t, engineerr.IsNotFound(err), "expected a NotFound engineerr, got %v", err)
}

func TestSubmitOperationRejectsSignatureForConcurrentlyMovedStep(t *testing.T) {
	gw := &fakeGateway{}
	e, mem := newTestExecutor(gw, "")
	require.NoError(t, mem.CreateOperation(t.Context(), newAwaitingOperation()))

	// Simulate a concurrent writer (e.g. a reconciler tick failing the
	// whole operation out from under this request) moving step s0 away
	// from AWAITING_SIGNATURE between this handler's read and its write.
	require.NoError(t, mem.CompareAndSetStepStatus(t.Context(), "op1", "s0", models.StepAwaitingSignature, models.StepFailed))

	_, err := e.SubmitOperation(t.Context(), "user1", "op1", []SignatureReport{
		{StepID: "s0", TxHash: "0xdeposit"},
	})
	require.Error(t, err)
	assert.False(t, engineerr.IsNotFound(err))

	persisted, err := mem.GetOperation(t.Context(), "user1", "op1")
	require.NoError(t, err)
	assert.Equal(t, models.StepFailed, persisted.StepByID("s0").Status,
		"the concurrent writer's FAILED transition must survive, not be overwritten by the late signature report")
}

func TestSubmitOperationRejectsUnknownStepID(t *testing.T) {
	gw := &fakeGateway{}
	e, mem := newTestExecutor(gw, "")
	require.NoError(t, mem.CreateOperation(t.Context(), newAwaitingOperation()))

	_, err := e.SubmitOperation(t.Context(), "user1", "op1", []SignatureReport{
		{StepID: "does-not-exist", TxHash: "0x1"},
	})
	require.Error(t, err)
}
