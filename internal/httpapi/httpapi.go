// Package httpapi is the thin HTTP surface the engine exposes through the
// enclosing service (spec.md §6, "HTTP surface consumed by the engine"):
// collect/send/swap-deposit planning, submit, and the query endpoints.
// Every route is scoped to one user, identified by the bearer session
// token a front door middleware is assumed to have already verified and
// placed on the request context under userContextKey.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/executor"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/planner"
	"github.com/arcsign/opsengine/internal/query"
	"github.com/arcsign/opsengine/internal/reconciler"
)

type contextKey string

const userContextKey contextKey = "opsengine.userID"

// WithUserID attaches the authenticated user id to ctx. Call this from the
// enclosing service's session-token middleware before routing into this
// package's handlers.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

func userIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userContextKey).(string)
	return v, ok && v != ""
}

// UserIDFromContext exposes the authenticated user id for other packages
// (e.g. middleware.RateLimit) that need to key off it without importing
// this package's handler internals.
func UserIDFromContext(ctx context.Context) (string, bool) {
	return userIDFromContext(ctx)
}

// API bundles the handlers for the v1/operations surface.
type API struct {
	Planner    *planner.Planner
	Executor   *executor.Executor
	Reconciler *reconciler.Reconciler
	Query      *query.Service
	Logger     zerolog.Logger
}

// New constructs an API.
func New(p *planner.Planner, e *executor.Executor, rec *reconciler.Reconciler, q *query.Service, logger zerolog.Logger) *API {
	return &API{Planner: p, Executor: e, Reconciler: rec, Query: q, Logger: logger}
}

// Register mounts every v1/operations route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/operations/collect", a.handleCollect)
	mux.HandleFunc("POST /v1/operations/send", a.handleSend)
	mux.HandleFunc("POST /v1/operations/swap-deposit", a.handleSwapDeposit)
	mux.HandleFunc("POST /v1/operations/{id}/refresh-swap", a.handleRefreshSwap)
	mux.HandleFunc("POST /v1/operations/{id}/submit", a.handleSubmit)
	mux.HandleFunc("GET /v1/operations", a.handleList)
	mux.HandleFunc("GET /v1/operations/{id}", a.handleGet)
}

type collectRequestBody struct {
	WalletAddress    string   `json:"walletAddress"`
	DelegateAddress  string   `json:"delegateAddress"`
	SourceChains     []string `json:"sourceChains"`
	DestinationChain string   `json:"destinationChain"`
}

func (a *API) handleCollect(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	var body collectRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engineerr.NewValidation(engineerr.CodeInvalidAmount, "malformed request body", err))
		return
	}
	op, err := a.Planner.PrepareCollect(r.Context(), planner.CollectRequest{
		UserID: userID, WalletAddress: body.WalletAddress, DelegateAddress: body.DelegateAddress,
		SourceChains: body.SourceChains, DestinationChain: body.DestinationChain,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

type sendRecipientBody struct {
	Chain               string `json:"chain"`
	Address             string `json:"address"`
	Amount              string `json:"amount"`
	OutputToken         string `json:"outputToken"`
	OutputTokenDecimals int    `json:"outputTokenDecimals"`
	Slippage            *int   `json:"slippage"`
}

type sendRequestBody struct {
	WalletAddress   string              `json:"walletAddress"`
	DelegateAddress string              `json:"delegateAddress"`
	SourceChain     string              `json:"sourceChain"`
	Recipients      []sendRecipientBody `json:"recipients"`
}

func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engineerr.NewValidation(engineerr.CodeInvalidAmount, "malformed request body", err))
		return
	}
	recipients := make([]planner.SendRecipient, len(body.Recipients))
	for i, rb := range body.Recipients {
		recipients[i] = planner.SendRecipient{
			Chain: rb.Chain, Address: rb.Address, Amount: rb.Amount,
			OutputToken: rb.OutputToken, OutputTokenDecimals: rb.OutputTokenDecimals, Slippage: rb.Slippage,
		}
	}
	op, err := a.Planner.PrepareSend(r.Context(), planner.SendRequest{
		UserID: userID, WalletAddress: body.WalletAddress, DelegateAddress: body.DelegateAddress,
		SourceChain: body.SourceChain, Recipients: recipients,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

type swapDepositRequestBody struct {
	WalletAddress   string `json:"walletAddress"`
	DelegateAddress string `json:"delegateAddress"`
	SourceChain     string `json:"sourceChain"`
	SourceToken     string `json:"sourceToken"`
	Amount          string `json:"amount"`
	TokenDecimals   int    `json:"tokenDecimals"`
	Slippage        *int   `json:"slippage"`
}

func (a *API) handleSwapDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	var body swapDepositRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engineerr.NewValidation(engineerr.CodeInvalidAmount, "malformed request body", err))
		return
	}
	op, err := a.Planner.PrepareSwapDeposit(r.Context(), planner.SwapDepositRequest{
		UserID: userID, WalletAddress: body.WalletAddress, DelegateAddress: body.DelegateAddress,
		SourceChain: body.SourceChain, SourceToken: body.SourceToken, Amount: body.Amount,
		TokenDecimals: body.TokenDecimals, Slippage: body.Slippage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

func (a *API) handleRefreshSwap(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	op, err := a.Reconciler.RefreshSwap(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

type submitRequestBody struct {
	Signatures []struct {
		StepID string `json:"stepId"`
		TxHash string `json:"txHash"`
	} `json:"signatures"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	operationID := r.PathValue("id")
	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engineerr.NewValidation(engineerr.CodeInvalidAmount, "malformed request body", err))
		return
	}
	reports := make([]executor.SignatureReport, len(body.Signatures))
	for i, s := range body.Signatures {
		reports[i] = executor.SignatureReport{StepID: s.StepID, TxHash: s.TxHash}
	}
	op, err := a.Executor.SubmitOperation(r.Context(), userID, operationID, reports)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	op, err := a.Query.GetOperation(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, engineerr.NewValidation(engineerr.CodeUnsupportedOperation, "missing session", nil))
		return
	}
	filter := query.ListFilter{}
	if t := r.URL.Query().Get("type"); t != "" {
		opType := models.OperationType(t)
		filter.Type = &opType
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := models.OperationStatus(s)
		filter.Status = &status
	}
	ops, total, err := a.Query.GetOperations(r.Context(), userID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Operations: ops, Total: total})
}

type listResponse struct {
	Operations []*models.Operation `json:"operations"`
	Total      int                 `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := "ERR_INTERNAL"
	status := http.StatusInternalServerError
	if ee, ok := err.(*engineerr.EngineError); ok {
		code = ee.Code
		switch ee.Kind {
		case engineerr.Validation:
			status = http.StatusBadRequest
		case engineerr.NotFound:
			status = http.StatusNotFound
		case engineerr.Transient:
			status = http.StatusServiceUnavailable
		case engineerr.Terminal:
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}
