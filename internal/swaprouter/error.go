package swaprouter

import (
	"errors"

	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/httpclient"
)

// classifyError maps a failed swap router call onto the engine's error
// taxonomy. A stale-quote rejection from the router is terminal for the
// current quote (spec.md §4.3/§4.6 call for requoting, not retrying the
// same call); everything else is transient.
func classifyError(err error, action string) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Selector == "QuoteExpired" || apiErr.Selector == "QuoteStale" {
			return engineerr.NewTerminal(engineerr.CodeSwapQuoteStale, apiErr.Message, err)
		}
	}
	return engineerr.NewTransient(engineerr.CodeSwapRouterUnavailable, "swap router unavailable: "+action, err)
}
