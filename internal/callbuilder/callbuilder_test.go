package callbuilder

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/opsengine/internal/models"
)

const (
	testToken         = "0x000000000000000000000000000000000000aa"
	testGatewayWallet = "0x000000000000000000000000000000000000bb"
	testDelegate      = "0x000000000000000000000000000000000000cc"
)

func TestBuildApproveEncodesSelectorAndArgs(t *testing.T) {
	call, err := BuildApprove(testToken, testGatewayWallet, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, testToken, call.To)
	assert.True(t, strings.HasPrefix(call.Data, "0x"))
	// approve(address,uint256) selector
	assert.True(t, strings.HasPrefix(call.Data, "0x095ea7b3"))
}

func TestBuildDepositTargetsGatewayWallet(t *testing.T) {
	call, err := BuildDeposit(testGatewayWallet, testToken, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, testGatewayWallet, call.To)
	assert.True(t, strings.HasPrefix(call.Data, "0x"))
}

func TestBuildAddDelegate(t *testing.T) {
	call, err := BuildAddDelegate(testGatewayWallet, testDelegate)
	require.NoError(t, err)
	assert.Equal(t, testGatewayWallet, call.To)
}

func TestBuildMintEncodesMessageAndAttestation(t *testing.T) {
	call, err := BuildMint("0x000000000000000000000000000000000000dd", []byte("message"), []byte("attestation"))
	require.NoError(t, err)
	assert.NotEmpty(t, call.Data)
}

func TestBuildApproveAndDepositOrdersDelegateFirst(t *testing.T) {
	calls, err := BuildApproveAndDeposit(testGatewayWallet, testToken, big.NewInt(1000), testDelegate, true)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Equal(t, testGatewayWallet, calls[0].To) // addDelegate
	assert.Equal(t, testToken, calls[1].To)          // approve
	assert.Equal(t, testGatewayWallet, calls[2].To)  // deposit
}

func TestBuildApproveAndDepositSkipsDelegateWhenNotNeeded(t *testing.T) {
	calls, err := BuildApproveAndDeposit(testGatewayWallet, testToken, big.NewInt(1000), testDelegate, false)
	require.NoError(t, err)
	require.Len(t, calls, 2)
}

func TestBuildApproveAndDepositSkipsApproveForNativeToken(t *testing.T) {
	calls, err := BuildApproveAndDeposit(testGatewayWallet, NativeTokenPlaceholder, big.NewInt(1000), testDelegate, false)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, testGatewayWallet, calls[0].To)
}

func TestBuildSwapThenDepositOrder(t *testing.T) {
	swapCall := models.CallSpec{To: "0x000000000000000000000000000000000000ee", Data: "0xswap"}
	calls, err := BuildSwapThenDeposit(swapCall, testGatewayWallet, testToken, big.NewInt(900), testDelegate, true)
	require.NoError(t, err)
	require.Len(t, calls, 4)
	assert.Equal(t, testGatewayWallet, calls[0].To) // addDelegate
	assert.Equal(t, swapCall.To, calls[1].To)        // swap
	assert.Equal(t, testToken, calls[2].To)          // approve
	assert.Equal(t, testGatewayWallet, calls[3].To)  // deposit
}
