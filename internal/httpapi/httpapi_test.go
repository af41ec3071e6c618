package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/opsengine/internal/catalogue"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/executor"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/planner"
	"github.com/arcsign/opsengine/internal/query"
	"github.com/arcsign/opsengine/internal/reconciler"
	"github.com/arcsign/opsengine/internal/store"
)

type fakeGateway struct {
	onChainBalances map[string]*big.Int
	authorized      map[string]bool
}

func (f *fakeGateway) GetBalance(ctx context.Context, walletAddress string) ([]engineext.GatewayBalance, error) {
	return nil, nil
}

func (f *fakeGateway) GetOnChainBalance(ctx context.Context, chain, walletAddress string) (*big.Int, error) {
	if bal, ok := f.onChainBalances[chain]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeGateway) IsDelegateAuthorized(ctx context.Context, chain, depositor, delegate string) (bool, error) {
	return f.authorized[chain], nil
}

func (f *fakeGateway) CreateBurnIntent(ctx context.Context, req engineext.BurnIntentRequest) (*engineext.SignableBurnIntent, error) {
	return nil, nil
}

func (f *fakeGateway) SignAndSubmitBurnIntent(ctx context.Context, intent *engineext.SignableBurnIntent, delegatePrivKey string) (*engineext.BurnIntentResult, error) {
	return nil, nil
}

func (f *fakeGateway) ExecuteMint(ctx context.Context, destChain, attestation, operatorSignature, relayerPrivKey string) (string, error) {
	return "", nil
}

type fakeDelegateKeys struct{}

func (fakeDelegateKeys) DelegateKeyFor(ctx context.Context, userID string) (string, error) {
	return "0xdelegate", nil
}

func newTestAPI(t *testing.T) (*API, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	cat := catalogue.NewDefaultCatalogue()
	gw := &fakeGateway{
		onChainBalances: map[string]*big.Int{"BASE": big.NewInt(5_000_000)},
		authorized:      map[string]bool{"BASE": true},
	}
	p := planner.New(cat, gw, nil, mem, nil, zerolog.Nop())
	e := executor.New(mem, gw, fakeDelegateKeys{}, "0xrelayer", nil, zerolog.Nop())
	rec := reconciler.New(mem, gw, nil, cat, fakeDelegateKeys{}, "0xrelayer", nil, zerolog.Nop())
	q := query.New(mem)
	return New(p, e, rec, q, zerolog.Nop()), mem
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(WithUserID(req.Context(), userID))
}

func TestHandleCollectCreatesOperation(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Register(mux)

	body, _ := json.Marshal(collectRequestBody{
		WalletAddress: "0xw", DelegateAddress: "0xd", SourceChains: []string{"BASE"},
	})
	req := withUser(httptest.NewRequest(http.MethodPost, "/v1/operations/collect", bytes.NewReader(body)), "u1")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var op models.Operation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &op))
	assert.Equal(t, "u1", op.UserID)
	assert.Equal(t, models.OperationCollect, op.Type)
}

func TestHandleCollectRejectsMissingSession(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Register(mux)

	body, _ := json.Marshal(collectRequestBody{SourceChains: []string{"BASE"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/operations/collect", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleGetAndListRoundTripCreatedOperation(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Register(mux)

	body, _ := json.Marshal(collectRequestBody{
		WalletAddress: "0xw", DelegateAddress: "0xd", SourceChains: []string{"BASE"},
	})
	createReq := withUser(httptest.NewRequest(http.MethodPost, "/v1/operations/collect", bytes.NewReader(body)), "u1")
	createRR := httptest.NewRecorder()
	mux.ServeHTTP(createRR, createReq)
	require.Equal(t, http.StatusCreated, createRR.Code)
	var created models.Operation
	require.NoError(t, json.Unmarshal(createRR.Body.Bytes(), &created))

	getReq := withUser(httptest.NewRequest(http.MethodGet, "/v1/operations/"+created.ID, nil), "u1")
	getRR := httptest.NewRecorder()
	mux.ServeHTTP(getRR, getReq)
	require.Equal(t, http.StatusOK, getRR.Code)

	listReq := withUser(httptest.NewRequest(http.MethodGet, "/v1/operations", nil), "u1")
	listRR := httptest.NewRecorder()
	mux.ServeHTTP(listRR, listReq)
	require.Equal(t, http.StatusOK, listRR.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(listRR.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestHandleGetReturnsNotFoundForUnknownID(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Register(mux)

	req := withUser(httptest.NewRequest(http.MethodGet, "/v1/operations/ghost", nil), "u1")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
