package app

import (
	"context"
	"sort"
	"strings"

	"github.com/keelerlabs/lenderctl/internal/catalog"
	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

const gasCoinType = "0x2::sui::SUI"

func (s *runtimeState) dialChain(ctx context.Context) (*chain.Client, error) {
	if s.chainClient != nil {
		return s.chainClient, nil
	}
	if strings.TrimSpace(s.settings.RPCURL) == "" {
		return nil, clierr.New(clierr.CodeUsage, "rpc url is required (--rpc-url or LENDER_RPC_URL)")
	}
	client, err := chain.Dial(ctx, s.settings.RPCURL, s.log)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	s.chainClient = client
	return client, nil
}

func (s *runtimeState) newCatalog(client *chain.Client) *catalog.Catalog {
	var metaCache catalog.MetadataCache
	if s.cache != nil {
		metaCache = s.cache
	}
	return catalog.New(client, metaCache, s.log)
}

// resolveBindings fetches live references for every configured protocol
// object and the caller's position. Versions are read at call time; bindings
// are not cached across commands.
func (s *runtimeState) resolveBindings(ctx context.Context, cat *catalog.Catalog, owner, assetType string) (roles.Bindings, *catalog.Position, error) {
	p := s.settings.Protocol
	if p.Package == "" {
		return roles.Bindings{}, nil, clierr.New(clierr.CodeUsage, "protocol package is not configured (LENDER_PROTOCOL_PACKAGE)")
	}

	b := roles.Bindings{
		OraclePackage:      p.OraclePackage,
		AssetType:          assetType,
		PriceTTLMS:         p.PriceTTLMS,
		BestEffortRegistry: p.BestEffortRegistry,
	}

	refs := []struct {
		id   string
		name string
		dst  **chain.ObjectRef
	}{
		{p.VersionObject, "version object", &b.VersionStamp},
		{p.MarketObject, "market object", &b.Market},
		{p.DecimalsRegistry, "decimals registry", &b.PriceRegistry},
		{p.XOracleObject, "price oracle", &b.PriceOracle},
		{p.ClockObject, "clock object", &b.Clock},
	}
	for _, r := range refs {
		if r.id == "" {
			continue
		}
		ref, err := cat.ResolveRef(ctx, r.id)
		if err != nil {
			return roles.Bindings{}, nil, clierr.Wrap(clierr.CodeUnavailable, "resolve "+r.name, err)
		}
		*r.dst = ref
	}

	position, err := cat.FindPosition(ctx, p.Package, owner)
	if err != nil {
		return roles.Bindings{}, nil, err
	}
	b.Position = &position.Ref
	b.Capability = &position.Capability
	return b, position, nil
}

// selectGasCoin picks the largest gas coin owned by the sender. Gas payment
// is deliberately a single coin; merging is left to wallet tooling.
func selectGasCoin(ctx context.Context, client *chain.Client, owner string) (chain.ObjectRef, error) {
	coins, err := client.GetCoins(ctx, owner, gasCoinType)
	if err != nil {
		return chain.ObjectRef{}, clierr.Wrap(clierr.CodeUnavailable, "list gas coins", err)
	}
	if len(coins) == 0 {
		return chain.ObjectRef{}, clierr.New(clierr.CodeFeeShortfall, "no gas coins owned by sender")
	}
	sort.Slice(coins, func(i, j int) bool { return coins[i].Balance > coins[j].Balance })
	best := coins[0]
	return chain.ObjectRef{ID: best.ObjectID, Version: best.Version, Owner: chain.OwnershipAddress}, nil
}

// primaryPackages is the first discovery search space: the protocol package
// itself. Configured extras are consulted only when it yields nothing.
func (s *runtimeState) primaryPackages() []string {
	if s.settings.Protocol.Package == "" {
		return nil
	}
	return []string{s.settings.Protocol.Package}
}

func (s *runtimeState) fallbackPackages() []string {
	return s.settings.Protocol.ExtraPackages
}
