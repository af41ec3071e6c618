package httpclient

import (
	"encoding/json"
	"fmt"
)

// APIError is a failed HTTP response, carrying the upstream service's
// selector-style error code when its body supplies one (the gateway's
// TransferSpecHashUsed / AttestationExpiredAtIndex classifications arrive
// this way per spec.md §6).
type APIError struct {
	StatusCode int
	Selector   string
	Message    string
}

type apiErrorBody struct {
	Selector string `json:"selector"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

func parseAPIError(statusCode int, body []byte) *APIError {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &APIError{StatusCode: statusCode, Message: string(body)}
	}
	msg := parsed.Message
	if msg == "" {
		msg = parsed.Error
	}
	if msg == "" {
		msg = string(body)
	}
	return &APIError{StatusCode: statusCode, Selector: parsed.Selector, Message: msg}
}

func (e *APIError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("http %d [%s]: %s", e.StatusCode, e.Selector, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}
