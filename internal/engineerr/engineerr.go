// Package engineerr classifies the errors the operation engine produces so
// callers can decide, without string-matching, whether a failure should fail
// a step outright, surface to the caller untouched, or simply be retried on
// the next reconciliation pass. The shape follows arcsign's ChainError /
// ErrorClassification split (src/chainadapter/error.go): a typed error
// envelope carrying a stable code plus a classification enum, rather than
// bare sentinel errors or string matching.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind classifies an EngineError for retry and reporting purposes.
type Kind int

const (
	// Validation errors stem from malformed or inconsistent caller input
	// (bad amount string, unknown chain, unsupported operation type) and
	// will never succeed on retry.
	Validation Kind = iota

	// NotFound errors mean the referenced operation, step, or chain does
	// not exist.
	NotFound

	// Transient errors come from a downstream dependency (gateway, swap
	// router, chain RPC) being temporarily unavailable or slow, and are
	// safe for the reconciler or executor to retry.
	Transient

	// Terminal errors are gateway rejections of a specific request (rejected
	// burn intent, insufficient balance, expired attestation) that an
	// identical retry will not fix. Of these, only an expired attestation
	// fails a step outright (see internal/advance); the others leave the
	// step PENDING for the reconciler.
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation"
	case NotFound:
		return "NotFound"
	case Transient:
		return "Transient"
	case Terminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// Error codes used across the engine. Callers should branch on these, not on
// Error() text.
const (
	CodeInvalidAmount        = "ERR_INVALID_AMOUNT"
	CodeUnsupportedChain     = "ERR_UNSUPPORTED_CHAIN"
	CodeUnsupportedOperation = "ERR_UNSUPPORTED_OPERATION"
	CodeInvalidAddress       = "ERR_INVALID_ADDRESS"

	CodeOperationNotFound  = "ERR_OPERATION_NOT_FOUND"
	CodeStepNotFound       = "ERR_STEP_NOT_FOUND"
	CodeInvalidOperationState = "ERR_INVALID_OPERATION_STATE"

	CodeGatewayUnavailable    = "ERR_GATEWAY_UNAVAILABLE"
	CodeSwapRouterUnavailable = "ERR_SWAP_ROUTER_UNAVAILABLE"
	CodeRPCTimeout            = "ERR_RPC_TIMEOUT"

	CodeInsufficientBalance    = "ERR_INSUFFICIENT_BALANCE"
	CodeDelegateNotAuthorized  = "ERR_DELEGATE_NOT_AUTHORIZED"
	CodeBurnIntentRejected     = "ERR_BURN_INTENT_REJECTED"
	CodeAttestationConsumed    = "ERR_ATTESTATION_CONSUMED"
	CodeAttestationExpired     = "ERR_ATTESTATION_EXPIRED"
	CodeMintFailed             = "ERR_MINT_FAILED"
	CodeSwapQuoteStale         = "ERR_SWAP_QUOTE_STALE"
	CodeSlippageExceeded       = "ERR_SLIPPAGE_EXCEEDED"
)

// EngineError is the typed error envelope returned by engine components.
type EngineError struct {
	Code    string
	Message string
	Kind    Kind
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// New builds an EngineError with the given classification.
func New(code, message string, kind Kind, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Kind: kind, Cause: cause}
}

// NewValidation builds a validation EngineError.
func NewValidation(code, message string, cause error) *EngineError {
	return New(code, message, Validation, cause)
}

// NewNotFound builds a not-found EngineError.
func NewNotFound(code, message string, cause error) *EngineError {
	return New(code, message, NotFound, cause)
}

// NewTransient builds a transient EngineError.
func NewTransient(code, message string, cause error) *EngineError {
	return New(code, message, Transient, cause)
}

// NewTerminal builds a terminal EngineError.
func NewTerminal(code, message string, cause error) *EngineError {
	return New(code, message, Terminal, cause)
}

// KindOf returns err's Kind if it is (or wraps) an *EngineError, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return 0, false
}

// IsTransient reports whether err should be retried by the reconciler.
func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Transient
}

// IsTerminal reports whether err is a Terminal gateway rejection.
func IsTerminal(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Terminal
}

// IsNotFound reports whether err means the referenced entity does not exist.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == NotFound
}

// IsValidation reports whether err stems from malformed caller input.
func IsValidation(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Validation
}

// IsAttestationConsumed reports whether err is the gateway's "this transfer
// spec hash has already been used" rejection (selector
// TransferSpecHashUsed). Hit on a MINT retry, it means a prior attempt
// already succeeded upstream, so the step should be confirmed rather than
// failed (spec.md §8 scenario 5, "mint idempotency"); hit on a BURN_INTENT
// retry it means that burn was already accepted.
func IsAttestationConsumed(err error) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Code == CodeAttestationConsumed
}

// IsAttestationExpired reports whether err is the gateway's "attestation
// validity window has passed" rejection (selector AttestationExpiredAtIndex).
// Hit on a MINT attempt, it fails the MINT step instead of leaving it for a
// retry.
func IsAttestationExpired(err error) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Code == CodeAttestationExpired
}
