// Package engineext declares the boundary interfaces between the operation
// engine and everything the specification treats as an external
// collaborator: the chain catalogue, the settlement gateway, the swap
// router, and the record store. The engine depends only on these
// interfaces; concrete implementations (internal/catalogue,
// internal/gateway, internal/swaprouter, internal/store) are wired in by
// cmd/reconciled. The split mirrors arcsign's
// chainadapter/provider.BlockchainProvider interface sitting in front of
// its ProviderRegistry of concrete providers.
package engineext

import (
	"context"
	"math/big"

	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/store"
)

// ChainInfo is one chain catalogue entry.
type ChainInfo struct {
	ChainKey             string
	ChainID              int64
	Domain               *uint32
	USDCAddress          string
	GatewayWalletAddress string
	SupportsSmartAccount bool
	GatewayCapable       bool
	FinalitySeconds      int
	IsHub                bool
}

// ChainCatalogue resolves chain metadata. Exactly one entry is flagged
// IsHub.
type ChainCatalogue interface {
	HubChain() string
	Lookup(chainKey string) (ChainInfo, bool)
	IsGatewayCapable(chainKey string) bool
	SupportsSmartAccount(chainKey string) bool
}

// GatewayBalance is one chain's deposited-balance entry from
// GatewayClient.GetBalance.
type GatewayBalance struct {
	Chain        string
	BalanceMinor *big.Int
}

// BurnIntentRequest is the input to GatewayClient.CreateBurnIntent.
type BurnIntentRequest struct {
	SourceChain   string
	DestChain     string
	AmountMinor   *big.Int
	Depositor     string
	Recipient     string
	MaxFeeMinor   *big.Int // defaults to amountmath.CalcMaxFee(AmountMinor) when nil
}

// SignableBurnIntent is the builder output of CreateBurnIntent: a typed-data
// payload ready for the delegate key to sign.
type SignableBurnIntent struct {
	SourceChain string
	DestChain   string
	AmountMinor *big.Int
	Depositor   string
	Recipient   string
	MaxFeeMinor *big.Int
	Payload     []byte // opaque typed-data encoding the gateway expects
}

// BurnIntentResult is the gateway's response to a submitted burn intent.
type BurnIntentResult struct {
	Attestation       string
	OperatorSignature string
}

// GatewayClient is the HTTP facade over the cross-chain USDC settlement
// service (spec.md §6, "Gateway client (out-bound)").
type GatewayClient interface {
	GetBalance(ctx context.Context, walletAddress string) ([]GatewayBalance, error)
	GetOnChainBalance(ctx context.Context, chain, walletAddress string) (*big.Int, error)
	IsDelegateAuthorized(ctx context.Context, chain, depositor, delegate string) (bool, error)
	CreateBurnIntent(ctx context.Context, req BurnIntentRequest) (*SignableBurnIntent, error)
	SignAndSubmitBurnIntent(ctx context.Context, intent *SignableBurnIntent, delegatePrivKey string) (*BurnIntentResult, error)
	ExecuteMint(ctx context.Context, destChain, attestation, operatorSignature, relayerPrivKey string) (txHash string, err error)
}

// SwapQuoteRequest is the input to SwapRouterClient.GetQuote.
type SwapQuoteRequest struct {
	FromChain    string
	ToChain      string
	FromToken    string
	ToToken      string
	FromAmount   *big.Int
	FromAddress  string
	ToAddress    string // optional, empty means same as FromAddress
	SlippageBps  int
}

// SwapQuote is the swap router's quoted outcome plus the executable call.
type SwapQuote struct {
	Tool                     string
	Action                   string
	ToAmountMinor            *big.Int
	ToAmountMinMinor         *big.Int
	ExecutionDurationSeconds int
	TransactionRequest       models.CallSpec
}

// SwapRouterClient is the HTTP facade over the swap aggregator (spec.md §6,
// "Swap router client (out-bound)").
type SwapRouterClient interface {
	GetQuote(ctx context.Context, req SwapQuoteRequest) (*SwapQuote, error)
	BuildSwapCalls(ctx context.Context, quote *SwapQuote, fromToken string, amountMinor *big.Int) ([]models.CallSpec, error)
}

// DelegateKeySource resolves a user's decrypted delegate signing key for
// the duration of one burn-intent submission. Delegate-key custody is an
// external collaborator (spec.md §1): the engine never persists or caches
// the returned key past the call that used it.
type DelegateKeySource interface {
	DelegateKeyFor(ctx context.Context, userID string) (string, error)
}

// RecordStore is the transactional key-indexed Operation/Step store the
// engine assumes (spec.md §1, §6). internal/store.Store is its concrete
// shape; this alias lets engine packages depend on engineext alone.
type RecordStore = store.Store
