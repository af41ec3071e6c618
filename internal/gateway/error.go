package gateway

import (
	"errors"

	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/httpclient"
)

// classifyHTTPError turns a transport-level failure from a read-only
// gateway call into an engineerr.Transient error, since a failed balance or
// authorization lookup is always safe to retry.
func classifyHTTPError(err error, action string) error {
	return engineerr.NewTransient(engineerr.CodeGatewayUnavailable, "gateway unavailable: "+action, err)
}

// classifyBurnIntentError maps a failed burn-intent submission onto the
// engine's error taxonomy, recognizing the gateway's selector-style
// rejections (spec.md §6, §7) as terminal rather than retryable.
func classifyBurnIntentError(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Selector {
		case "TransferSpecHashUsed":
			return engineerr.NewTerminal(engineerr.CodeAttestationConsumed, apiErr.Message, err)
		case "AttestationExpiredAtIndex":
			return engineerr.NewTerminal(engineerr.CodeAttestationExpired, apiErr.Message, err)
		case "InsufficientBalance":
			return engineerr.NewTerminal(engineerr.CodeInsufficientBalance, apiErr.Message, err)
		case "DelegateNotAuthorized":
			return engineerr.NewTerminal(engineerr.CodeDelegateNotAuthorized, apiErr.Message, err)
		}
		if apiErr.StatusCode >= 500 {
			return engineerr.NewTransient(engineerr.CodeGatewayUnavailable, "gateway failed to accept burn intent", err)
		}
		return engineerr.NewTerminal(engineerr.CodeBurnIntentRejected, apiErr.Message, err)
	}
	return engineerr.NewTransient(engineerr.CodeGatewayUnavailable, "gateway unavailable: submit burn intent", err)
}

// classifyMintError maps a failed mint execution onto the engine's error
// taxonomy. Mint failures are retryable by default (the reconciler will
// re-attempt the mint step) unless the gateway signals a terminal rejection.
// TransferSpecHashUsed specifically means a prior mint attempt already
// succeeded upstream (spec.md §8 scenario 5, "mint idempotency") — callers
// check engineerr.IsAttestationConsumed and treat it as a confirmed step,
// not a failure.
func classifyMintError(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Selector {
		case "TransferSpecHashUsed":
			return engineerr.NewTerminal(engineerr.CodeAttestationConsumed, apiErr.Message, err)
		case "AttestationExpiredAtIndex":
			return engineerr.NewTerminal(engineerr.CodeAttestationExpired, apiErr.Message, err)
		}
		if apiErr.StatusCode >= 500 {
			return engineerr.NewTransient(engineerr.CodeMintFailed, "gateway failed to execute mint", err)
		}
		return engineerr.NewTerminal(engineerr.CodeMintFailed, apiErr.Message, err)
	}
	return engineerr.NewTransient(engineerr.CodeMintFailed, "gateway unavailable: execute mint", err)
}
