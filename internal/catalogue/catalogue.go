// Package catalogue provides the chain configuration catalogue: a static
// map from chain key to chain metadata (chain id, USDC token address,
// gateway domain, finality hint, and capability flags), with exactly one
// entry designated HUB_CHAIN. Out of scope per spec.md §1 ("the chain
// catalogue... §6 describes only their interfaces"), but a concrete
// reference implementation is provided for tests and for cmd/reconciled's
// default wiring, resolving the Open Question in spec.md §9 about multiple
// catalogue variants by picking Ethereum mainnet as the one canonical hub.
//
// Entry validation follows the pattern of arcsign's
// internal/services/coinregistry.CoinMetadata.Validate: required fields,
// no silent zero values.
package catalogue

import (
	"errors"
	"fmt"

	"github.com/arcsign/opsengine/internal/engineext"
)

func domain(d uint32) *uint32 { return &d }

// defaultEntries is the engine's canonical chain set: Ethereum mainnet as
// HUB_CHAIN, plus the CCTP-supported L2s the planner's cross-chain paths
// exercise. Domain numbers match Circle's CCTP domain registry.
var defaultEntries = []engineext.ChainInfo{
	{
		ChainKey:             "ETHEREUM",
		ChainID:              1,
		Domain:               domain(0),
		USDCAddress:          "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		GatewayWalletAddress: "0x0077777d7EBA4688BDeF3E311b846F25870A19B9",
		SupportsSmartAccount: true,
		GatewayCapable:       true,
		FinalitySeconds:      900,
		IsHub:                true,
	},
	{
		ChainKey:             "BASE",
		ChainID:              8453,
		Domain:               domain(6),
		USDCAddress:          "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		GatewayWalletAddress: "0x0077777d7EBA4688BDeF3E311b846F25870A19B9",
		SupportsSmartAccount: true,
		GatewayCapable:       true,
		FinalitySeconds:      20,
	},
	{
		ChainKey:             "ARBITRUM",
		ChainID:              42161,
		Domain:               domain(3),
		USDCAddress:          "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		GatewayWalletAddress: "0x0077777d7EBA4688BDeF3E311b846F25870A19B9",
		SupportsSmartAccount: true,
		GatewayCapable:       true,
		FinalitySeconds:      60,
	},
	{
		ChainKey:             "OPTIMISM",
		ChainID:              10,
		Domain:               domain(2),
		USDCAddress:          "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		GatewayWalletAddress: "0x0077777d7EBA4688BDeF3E311b846F25870A19B9",
		SupportsSmartAccount: true,
		GatewayCapable:       true,
		FinalitySeconds:      60,
	},
	{
		ChainKey:             "POLYGON",
		ChainID:              137,
		Domain:               domain(7),
		USDCAddress:          "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		GatewayWalletAddress: "0x0077777d7EBA4688BDeF3E311b846F25870A19B9",
		SupportsSmartAccount: true,
		GatewayCapable:       true,
		FinalitySeconds:      300,
	},
}

// StaticCatalogue is a concrete in-memory ChainCatalogue.
type StaticCatalogue struct {
	entries map[string]engineext.ChainInfo
	hub     string
}

// NewStaticCatalogue validates entries and returns a StaticCatalogue.
// Exactly one entry must have IsHub set.
func NewStaticCatalogue(entries []engineext.ChainInfo) (*StaticCatalogue, error) {
	c := &StaticCatalogue{entries: make(map[string]engineext.ChainInfo, len(entries))}
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("catalogue: invalid entry %q: %w", e.ChainKey, err)
		}
		if _, dup := c.entries[e.ChainKey]; dup {
			return nil, fmt.Errorf("catalogue: duplicate chain key %q", e.ChainKey)
		}
		if e.IsHub {
			if c.hub != "" {
				return nil, fmt.Errorf("catalogue: more than one HUB_CHAIN (%q and %q)", c.hub, e.ChainKey)
			}
			c.hub = e.ChainKey
		}
		c.entries[e.ChainKey] = e
	}
	if c.hub == "" {
		return nil, errors.New("catalogue: no HUB_CHAIN designated")
	}
	return c, nil
}

// NewDefaultCatalogue returns the engine's canonical catalogue.
func NewDefaultCatalogue() *StaticCatalogue {
	c, err := NewStaticCatalogue(defaultEntries)
	if err != nil {
		// defaultEntries is a compile-time constant fixture; a validation
		// failure here means the fixture itself is broken.
		panic("catalogue: default entries invalid: " + err.Error())
	}
	return c
}

func validate(e engineext.ChainInfo) error {
	if e.ChainKey == "" {
		return errors.New("chainKey cannot be empty")
	}
	if e.ChainID <= 0 {
		return errors.New("chainID must be positive")
	}
	if e.USDCAddress == "" {
		return errors.New("usdcAddress cannot be empty")
	}
	if e.FinalitySeconds <= 0 {
		return errors.New("finalitySeconds must be positive")
	}
	return nil
}

func (c *StaticCatalogue) HubChain() string {
	return c.hub
}

func (c *StaticCatalogue) Lookup(chainKey string) (engineext.ChainInfo, bool) {
	e, ok := c.entries[chainKey]
	return e, ok
}

func (c *StaticCatalogue) IsGatewayCapable(chainKey string) bool {
	e, ok := c.entries[chainKey]
	return ok && e.GatewayCapable
}

func (c *StaticCatalogue) SupportsSmartAccount(chainKey string) bool {
	e, ok := c.entries[chainKey]
	return ok && e.SupportsSmartAccount
}
