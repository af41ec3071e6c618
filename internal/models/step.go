package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepType is the kind of atomic work a Step performs.
type StepType string

const (
	StepApproveAndDeposit StepType = "APPROVE_AND_DEPOSIT"
	StepAddDelegate       StepType = "ADD_DELEGATE"
	StepTransfer          StepType = "TRANSFER"
	StepBurnIntent        StepType = "BURN_INTENT"
	StepMint              StepType = "MINT"
	StepLifiSwap          StepType = "LIFI_SWAP"
)

// StepStatus is the lifecycle state of a Step.
type StepStatus string

const (
	StepAwaitingSignature StepStatus = "AWAITING_SIGNATURE"
	StepPending           StepStatus = "PENDING"
	StepConfirmed         StepStatus = "CONFIRMED"
	StepSkipped           StepStatus = "SKIPPED"
	StepFailed            StepStatus = "FAILED"
)

// IsTerminal reports whether status can no longer be mutated except for
// bookkeeping (per the §3 invariant on CONFIRMED/SKIPPED steps).
func (s StepStatus) IsTerminal() bool {
	return s == StepConfirmed || s == StepSkipped || s == StepFailed
}

// BurnDataKind tags which variant of BurnIntentData a step carries.
type BurnDataKind string

const (
	BurnDataEmpty    BurnDataKind = "empty"
	BurnDataBurn     BurnDataKind = "burn"
	BurnDataSwap     BurnDataKind = "swap"
	BurnDataTransfer BurnDataKind = "transfer"
)

// BurnParams is carried by BURN_INTENT steps.
type BurnParams struct {
	SourceChain      string `json:"sourceChain"`
	DestinationChain string `json:"destinationChain"`
	Amount           string `json:"amount"`
	Depositor        string `json:"depositor"`
	Recipient        string `json:"recipient"`
}

// SwapParams is carried by post-mint LIFI_SWAP steps (the burn/mint pair
// ahead of them delivers USDC that this step then swaps into the
// recipient's desired output token).
type SwapParams struct {
	OutputToken         string `json:"outputToken"`
	OutputTokenDecimals int    `json:"outputTokenDecimals"`
	Slippage            string `json:"slippage"`
	RecipientAddress    string `json:"recipientAddress"`
	USDCAmount          string `json:"usdcAmount"`
}

// TransferParams describes a planned internal USDC transfer on the hub
// chain, carried by TRANSFER steps.
type TransferParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// BurnIntentData is the tagged union persisted in Step.BurnIntentData. At
// most one of Burn/Swap/Transfer is set, selected by Kind.
type BurnIntentData struct {
	Kind     BurnDataKind     `json:"kind"`
	Burn     *BurnParams      `json:"burn,omitempty"`
	Swap     *SwapParams      `json:"swap,omitempty"`
	Transfer *TransferParams  `json:"transfer,omitempty"`
}

// burnIntentDataWire is BurnIntentData's flat JSON shape: exactly one of
// burn/swap/transfer is present, selected by kind. Keeping the wire
// representation separate from the Go struct lets MarshalJSON reject an
// inconsistent Kind/pointer pairing instead of silently emitting a body
// that disagrees with its own tag.
type burnIntentDataWire struct {
	Kind     BurnDataKind     `json:"kind"`
	Burn     *BurnParams      `json:"burn,omitempty"`
	Swap     *SwapParams      `json:"swap,omitempty"`
	Transfer *TransferParams  `json:"transfer,omitempty"`
}

func (b BurnIntentData) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BurnDataEmpty, "":
		return json.Marshal(burnIntentDataWire{Kind: BurnDataEmpty})
	case BurnDataBurn:
		if b.Burn == nil {
			return nil, fmt.Errorf("models: BurnIntentData kind %q requires Burn", b.Kind)
		}
		return json.Marshal(burnIntentDataWire{Kind: b.Kind, Burn: b.Burn})
	case BurnDataSwap:
		if b.Swap == nil {
			return nil, fmt.Errorf("models: BurnIntentData kind %q requires Swap", b.Kind)
		}
		return json.Marshal(burnIntentDataWire{Kind: b.Kind, Swap: b.Swap})
	case BurnDataTransfer:
		if b.Transfer == nil {
			return nil, fmt.Errorf("models: BurnIntentData kind %q requires Transfer", b.Kind)
		}
		return json.Marshal(burnIntentDataWire{Kind: b.Kind, Transfer: b.Transfer})
	default:
		return nil, fmt.Errorf("models: unknown BurnIntentData kind %q", b.Kind)
	}
}

func (b *BurnIntentData) UnmarshalJSON(data []byte) error {
	var wire burnIntentDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case BurnDataEmpty, "":
		*b = BurnIntentData{Kind: BurnDataEmpty}
	case BurnDataBurn:
		if wire.Burn == nil {
			return fmt.Errorf("models: BurnIntentData kind %q missing burn", wire.Kind)
		}
		*b = BurnIntentData{Kind: wire.Kind, Burn: wire.Burn}
	case BurnDataSwap:
		if wire.Swap == nil {
			return fmt.Errorf("models: BurnIntentData kind %q missing swap", wire.Kind)
		}
		*b = BurnIntentData{Kind: wire.Kind, Swap: wire.Swap}
	case BurnDataTransfer:
		if wire.Transfer == nil {
			return fmt.Errorf("models: BurnIntentData kind %q missing transfer", wire.Kind)
		}
		*b = BurnIntentData{Kind: wire.Kind, Transfer: wire.Transfer}
	default:
		return fmt.Errorf("models: unknown BurnIntentData kind %q", wire.Kind)
	}
	return nil
}

// Step is one atomic unit of work within an Operation.
type Step struct {
	ID             string          `json:"id"`
	OperationID    string          `json:"operationId"`
	StepIndex      int             `json:"stepIndex"`
	Chain          string          `json:"chain"`
	Type           StepType        `json:"type"`
	Status         StepStatus      `json:"status"`
	CallData       []byte          `json:"callData,omitempty"`
	BurnIntentData BurnIntentData  `json:"burnIntentData"`
	Attestation    string          `json:"attestation,omitempty"`
	OperatorSignature string       `json:"operatorSignature,omitempty"`
	TxHash         string          `json:"txHash,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// HasAttestation reports whether a confirmed burn-intent step carries both
// halves of a usable attestation.
func (s *Step) HasAttestation() bool {
	return s.Attestation != "" && s.OperatorSignature != ""
}
