// Package models defines the persisted shapes of the engine's core
// aggregates: Operation and Step.
package models

import "time"

// OperationType is the kind of user intent a plan was prepared for.
type OperationType string

const (
	OperationCollect    OperationType = "COLLECT"
	OperationSend       OperationType = "SEND"
	OperationBridge     OperationType = "BRIDGE"
	OperationBatchSend  OperationType = "BATCH_SEND"
	OperationSwapDeposit OperationType = "SWAP_DEPOSIT"
)

// OperationStatus is the aggregate status derived from step statuses.
type OperationStatus string

const (
	OperationAwaitingSignature OperationStatus = "AWAITING_SIGNATURE"
	OperationProcessing        OperationStatus = "PROCESSING"
	OperationCompleted         OperationStatus = "COMPLETED"
	OperationFailed            OperationStatus = "FAILED"
)

// SignRequest is one outstanding client-signable request surfaced on an
// Operation. serverSide sign-requests are informational only: the engine
// drives them to completion asynchronously and never expects a txHash
// report for them.
type SignRequest struct {
	StepID      string      `json:"stepId"`
	Chain       string      `json:"chain"`
	Type        StepType    `json:"type"`
	Calls       []CallSpec  `json:"calls"`
	Description string      `json:"description"`
	ServerSide  bool        `json:"serverSide"`
	PendingMint bool        `json:"pendingMint"`
}

// CallSpec is a single on-chain call a client must sign and submit.
type CallSpec struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
}

// Summary is the human-oriented projection of an Operation's intent.
type Summary struct {
	FeeAmount     string             `json:"feeAmount"`
	FeePercent    string             `json:"feePercent"`
	EstimatedTime string             `json:"estimatedTime"`
	Sources       []SourceSummary    `json:"sources,omitempty"`
	Recipients    []RecipientSummary `json:"recipients,omitempty"`
	SwapEstimates []SwapEstimate     `json:"swapEstimates,omitempty"`
}

// SourceSummary records a single source chain's planned deposit/burn in a
// Collect operation.
type SourceSummary struct {
	Chain         string `json:"chain"`
	DepositAmount string `json:"depositAmount"`
	BurnAmount    string `json:"burnAmount"`
}

// RecipientSummary records one recipient's planned transfer.
type RecipientSummary struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Internal bool  `json:"internal"`
}

// SwapEstimate is the estimated outcome of a LIFI_SWAP step at plan time.
type SwapEstimate struct {
	StepID              string `json:"stepId"`
	OutputToken         string `json:"outputToken"`
	EstimatedOutput     string `json:"estimatedOutput"`
	MinimumOutput       string `json:"minimumOutput"`
	EstimatedDurationS  int    `json:"estimatedDurationSeconds"`
}

// Operation is one user intent, owning an ordered list of Steps.
type Operation struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Type          OperationType   `json:"type"`
	Status        OperationStatus `json:"status"`
	Params        []byte          `json:"params"`
	Summary       Summary         `json:"summary"`
	SignRequests  []SignRequest   `json:"signRequests"`
	FeeAmount     string          `json:"feeAmount"`
	FeePercent    string          `json:"feePercent"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`

	Steps []*Step `json:"steps"`
}

// RemoveSignRequest drops the sign-request for stepID, if present. Used by
// the executor once a reported signature has confirmed that step.
func (o *Operation) RemoveSignRequest(stepID string) {
	out := o.SignRequests[:0]
	for _, sr := range o.SignRequests {
		if sr.StepID != stepID {
			out = append(out, sr)
		}
	}
	o.SignRequests = out
}

// StepByID returns the step with the given id, or nil.
func (o *Operation) StepByID(id string) *Step {
	for _, s := range o.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// DeriveStatus recomputes the operation status from its steps per the
// lifecycle rule: COMPLETED iff every step is CONFIRMED or SKIPPED, FAILED
// iff any step is FAILED, AWAITING_SIGNATURE iff at least one non-terminal
// step is AWAITING_SIGNATURE, otherwise PROCESSING.
func (o *Operation) DeriveStatus() OperationStatus {
	if len(o.Steps) == 0 {
		return o.Status
	}

	allTerminalOK := true
	anyFailed := false
	anyAwaiting := false

	for _, s := range o.Steps {
		switch s.Status {
		case StepConfirmed, StepSkipped:
			// terminal-ok, no-op
		case StepFailed:
			anyFailed = true
			allTerminalOK = false
		case StepAwaitingSignature:
			anyAwaiting = true
			allTerminalOK = false
		default:
			allTerminalOK = false
		}
	}

	switch {
	case anyFailed:
		return OperationFailed
	case allTerminalOK:
		return OperationCompleted
	case anyAwaiting:
		return OperationAwaitingSignature
	default:
		return OperationProcessing
	}
}
