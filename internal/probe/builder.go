package probe

import (
	"fmt"

	"github.com/keelerlabs/lenderctl/internal/chain"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

// BuildConfig carries the per-run transaction facts that do not vary between
// probe attempts.
type BuildConfig struct {
	Sender     string
	GasBudget  uint64
	GasPrice   uint64
	GasPayment []chain.ObjectRef
}

// BuildTransaction assembles a complete transaction for one trial: the
// price-refresh preamble for the referenced asset, then the entry call with
// the trial amount bound to its numeric parameter. Transactions are built
// fresh per attempt and never mutated after encoding.
func BuildTransaction(cfg BuildConfig, entry chain.EntryPoint, bindings roles.Bindings, amount uint64) (*chain.Transaction, error) {
	if err := roles.ValidateOwnership(bindings); err != nil {
		return nil, err
	}

	typeArgs, err := resolveTypeArguments(entry, bindings)
	if err != nil {
		return nil, err
	}
	args, err := roles.BuildArguments(entry.Parameters, bindings, amount)
	if err != nil {
		return nil, err
	}

	tx := &chain.Transaction{
		Sender:     cfg.Sender,
		GasBudget:  cfg.GasBudget,
		GasPrice:   cfg.GasPrice,
		GasPayment: cfg.GasPayment,
	}
	tx.Calls = append(tx.Calls, preambleCalls(bindings)...)
	tx.Calls = append(tx.Calls, chain.MoveCall{
		Package:       entry.PackageID,
		Module:        entry.Module,
		Function:      entry.Function,
		TypeArguments: typeArgs,
		Arguments:     args,
	})
	return tx, nil
}

// preambleCalls emits the three-step price-refresh sequence: request a price
// update ticket, assert it under the configured TTL, confirm the ticket.
// This is unconditional infrastructure for any priced call, not a matched
// parameter.
func preambleCalls(b roles.Bindings) []chain.MoveCall {
	if b.PriceOracle == nil || b.OraclePackage == "" || b.AssetType == "" {
		return nil
	}
	oracle := chain.ObjectCallArg(*b.PriceOracle, true)
	var clock chain.CallArg
	if b.Clock != nil {
		clock = chain.ObjectCallArg(*b.Clock, false)
	}
	typeArgs := []string{b.AssetType}

	request := chain.MoveCall{
		Package:       b.OraclePackage,
		Module:        "x_oracle",
		Function:      "price_update_request",
		TypeArguments: typeArgs,
		Arguments:     []chain.CallArg{oracle},
	}
	assert := chain.MoveCall{
		Package:       b.OraclePackage,
		Module:        "x_oracle",
		Function:      "assert_price_fresh",
		TypeArguments: typeArgs,
		Arguments:     []chain.CallArg{oracle, chain.PureCallArg(chain.PureU64(b.PriceTTLMS))},
	}
	confirm := chain.MoveCall{
		Package:       b.OraclePackage,
		Module:        "x_oracle",
		Function:      "confirm_price_update_request",
		TypeArguments: typeArgs,
		Arguments:     []chain.CallArg{oracle},
	}
	if b.Clock != nil {
		assert.Arguments = append(assert.Arguments, clock)
		confirm.Arguments = append(confirm.Arguments, clock)
	}
	return []chain.MoveCall{request, assert, confirm}
}

func resolveTypeArguments(entry chain.EntryPoint, b roles.Bindings) ([]string, error) {
	switch entry.TypeParameters {
	case 0:
		return nil, nil
	case 1:
		if b.AssetType == "" {
			return nil, clierr.New(clierr.CodeUsage, "entry point is generic over an asset type; --asset-type is required")
		}
		return []string{b.AssetType}, nil
	default:
		return nil, clierr.New(clierr.CodeUnsupported,
			fmt.Sprintf("entry point %s declares %d type parameters; only one generic asset type is supported", entry.ShortName(), entry.TypeParameters))
	}
}
