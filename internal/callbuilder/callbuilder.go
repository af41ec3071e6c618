// Package callbuilder produces the deterministic call payloads the engine
// embeds into client-signed steps (spec.md §2 component 5, "Call
// Builders"): ERC-20 approve, gateway-wallet deposit, add-delegate,
// gateway-mint, and the composed swap-then-deposit sequence. Amounts are
// ABI-encoded with github.com/ethereum/go-ethereum's accounts/abi package,
// already an arcsign dependency (its ethereum chain adapter references the
// same encoding, src/chainadapter/examples/ethereum_example.go) but not
// previously exercised by any concrete call site in that repo.
package callbuilder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/arcsign/opsengine/internal/models"
)

// NativeTokenPlaceholder is the zero address convention meaning "the
// chain's native gas token" rather than an ERC-20 (spec.md §6,
// buildSwapCalls skips the approve call for this placeholder).
const NativeTokenPlaceholder = "0x0000000000000000000000000000000000000000"

const erc20ABIJSON = `[
  {"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const gatewayWalletABIJSON = `[
  {"constant":false,"inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"name":"deposit","outputs":[],"type":"function"},
  {"constant":false,"inputs":[{"name":"delegate","type":"address"}],"name":"addDelegate","outputs":[],"type":"function"}
]`

const messageTransmitterABIJSON = `[
  {"constant":false,"inputs":[{"name":"message","type":"bytes"},{"name":"attestation","type":"bytes"}],"name":"receiveMessage","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var (
	erc20ABI             abi.ABI
	gatewayWalletABI      abi.ABI
	messageTransmitterABI abi.ABI
)

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("callbuilder: invalid erc20 ABI: %v", err))
	}
	gatewayWalletABI, err = abi.JSON(strings.NewReader(gatewayWalletABIJSON))
	if err != nil {
		panic(fmt.Sprintf("callbuilder: invalid gateway wallet ABI: %v", err))
	}
	messageTransmitterABI, err = abi.JSON(strings.NewReader(messageTransmitterABIJSON))
	if err != nil {
		panic(fmt.Sprintf("callbuilder: invalid message transmitter ABI: %v", err))
	}
}

// BuildApprove encodes an ERC-20 approve(spender, amount) call against
// token.
func BuildApprove(token, spender string, amountMinor *big.Int) (models.CallSpec, error) {
	data, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amountMinor)
	if err != nil {
		return models.CallSpec{}, fmt.Errorf("callbuilder: failed to encode approve: %w", err)
	}
	return models.CallSpec{To: token, Data: toHex(data)}, nil
}

// BuildDeposit encodes a gateway-wallet deposit(token, amount) call.
func BuildDeposit(gatewayWallet, token string, amountMinor *big.Int) (models.CallSpec, error) {
	data, err := gatewayWalletABI.Pack("deposit", common.HexToAddress(token), amountMinor)
	if err != nil {
		return models.CallSpec{}, fmt.Errorf("callbuilder: failed to encode deposit: %w", err)
	}
	return models.CallSpec{To: gatewayWallet, Data: toHex(data)}, nil
}

// BuildAddDelegate encodes a gateway-wallet addDelegate(delegate) call.
func BuildAddDelegate(gatewayWallet, delegate string) (models.CallSpec, error) {
	data, err := gatewayWalletABI.Pack("addDelegate", common.HexToAddress(delegate))
	if err != nil {
		return models.CallSpec{}, fmt.Errorf("callbuilder: failed to encode addDelegate: %w", err)
	}
	return models.CallSpec{To: gatewayWallet, Data: toHex(data)}, nil
}

// BuildMint encodes a message-transmitter receiveMessage(message,
// attestation) call. The MINT step itself is server-driven (the relayer
// submits it): the gateway client's ExecuteMint sends the attestation and
// operator signature to the gateway and does not use this calldata.
func BuildMint(messageTransmitter string, message, attestation []byte) (models.CallSpec, error) {
	data, err := messageTransmitterABI.Pack("receiveMessage", message, attestation)
	if err != nil {
		return models.CallSpec{}, fmt.Errorf("callbuilder: failed to encode receiveMessage: %w", err)
	}
	return models.CallSpec{To: messageTransmitter, Data: toHex(data)}, nil
}

// BuildApproveAndDeposit composes the delegate-authorization (optional),
// approve, and deposit calls for one source chain's APPROVE_AND_DEPOSIT
// step, in the order spec.md §4.2/§4.3 require: delegate first when
// needed, then approve, then deposit.
func BuildApproveAndDeposit(gatewayWallet, token string, amountMinor *big.Int, delegate string, needsDelegate bool) ([]models.CallSpec, error) {
	calls := make([]models.CallSpec, 0, 3)
	if needsDelegate {
		addDelegate, err := BuildAddDelegate(gatewayWallet, delegate)
		if err != nil {
			return nil, err
		}
		calls = append(calls, addDelegate)
	}
	if token != NativeTokenPlaceholder {
		approve, err := BuildApprove(token, gatewayWallet, amountMinor)
		if err != nil {
			return nil, err
		}
		calls = append(calls, approve)
	}
	deposit, err := BuildDeposit(gatewayWallet, token, amountMinor)
	if err != nil {
		return nil, err
	}
	return append(calls, deposit), nil
}

// BuildSwapThenDeposit composes `[swap, approve, deposit]` for
// prepareSwapDeposit (spec.md §4.4): the swap call is taken as-is from the
// swap router's quote, approve/deposit convert the resulting USDC into a
// gateway deposit. needsDelegate prepends an addDelegate call.
func BuildSwapThenDeposit(swapCall models.CallSpec, gatewayWallet, usdcToken string, depositAmountMinor *big.Int, delegate string, needsDelegate bool) ([]models.CallSpec, error) {
	calls := make([]models.CallSpec, 0, 4)
	if needsDelegate {
		addDelegate, err := BuildAddDelegate(gatewayWallet, delegate)
		if err != nil {
			return nil, err
		}
		calls = append(calls, addDelegate)
	}
	calls = append(calls, swapCall)

	approve, err := BuildApprove(usdcToken, gatewayWallet, depositAmountMinor)
	if err != nil {
		return nil, err
	}
	calls = append(calls, approve)

	deposit, err := BuildDeposit(gatewayWallet, usdcToken, depositAmountMinor)
	if err != nil {
		return nil, err
	}
	return append(calls, deposit), nil
}

func toHex(data []byte) string {
	return "0x" + common.Bytes2Hex(data)
}
