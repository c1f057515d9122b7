package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keelerlabs/lenderctl/internal/catalog"
	"github.com/keelerlabs/lenderctl/internal/chain"
	"github.com/keelerlabs/lenderctl/internal/discover"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/execution"
	"github.com/keelerlabs/lenderctl/internal/execution/signer"
	"github.com/keelerlabs/lenderctl/internal/id"
	"github.com/keelerlabs/lenderctl/internal/model"
	"github.com/keelerlabs/lenderctl/internal/probe"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

type actionFlags struct {
	assetType     string
	amountBase    string
	amountDecimal string
	percent       float64
	drain         bool
	dryRun        bool
	entryOverride string
	privateKey    string
	decimals      int
}

func (s *runtimeState) newActionCommand(intent, short string) *cobra.Command {
	root := &cobra.Command{Use: intent, Short: short}

	var flags actionFlags
	run := &cobra.Command{
		Use:   "run",
		Short: fmt.Sprintf("Discover, size, and execute a %s", intent),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAction(trimRootPath(cmd.CommandPath()), intent, flags)
		},
	}
	run.Flags().StringVar(&flags.assetType, "asset-type", "", "Full asset type tag (e.g. 0x2::sui::SUI)")
	run.Flags().StringVar(&flags.amountBase, "amount", "", "Amount in base units")
	run.Flags().StringVar(&flags.amountDecimal, "amount-decimal", "", "Amount in decimal units")
	run.Flags().Float64Var(&flags.percent, "percent", 0, "Percentage of the discovered maximum (1-100)")
	run.Flags().BoolVar(&flags.drain, "drain", false, "Repeat at the maximum until the residual drops below the dust threshold")
	run.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Simulate only; never submit")
	run.Flags().StringVar(&flags.entryOverride, "entry", "", "Entry point override (package::module::function)")
	run.Flags().StringVar(&flags.privateKey, "private-key", "", "Signing key override (suiprivkey/hex/base64)")
	run.Flags().IntVar(&flags.decimals, "decimals", 9, "Asset decimals for display formatting")
	_ = run.MarkFlagRequired("asset-type")

	root.AddCommand(run)
	return root
}

// runAction is the full pipeline: discover the entry point, resolve bindings,
// size the amount, then execute with adaptive retry.
func (s *runtimeState) runAction(commandPath, intent string, flags actionFlags) error {
	if err := validateAmountFlags(flags); err != nil {
		return err
	}

	txSigner, err := signer.NewLocalSignerFromEnv(flags.privateKey)
	if err != nil {
		return err
	}
	sender := txSigner.Address()

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()

	client, err := s.dialChain(ctx)
	if err != nil {
		return err
	}
	cat := s.newCatalog(client)

	entry, err := s.resolveEntry(ctx, cat, intent, flags.entryOverride)
	if err != nil {
		return err
	}
	s.log.Info().Str("entry", entry.ShortName()).Str("intent", intent).Msg("entry point selected")

	bindings, _, err := s.resolveBindings(ctx, cat, sender, flags.assetType)
	if err != nil {
		return err
	}
	gasCoin, err := selectGasCoin(ctx, client, sender)
	if err != nil {
		return err
	}

	exec := s.settings.Execution
	buildCfg := probe.BuildConfig{
		Sender:     sender,
		GasBudget:  exec.GasBudget,
		GasPrice:   exec.GasPrice,
		GasPayment: []chain.ObjectRef{gasCoin},
	}
	classifier := probe.NewClassifier(exec.LimitPatterns, exec.FeePatterns)
	engine := probe.NewEngine(client, classifier, buildCfg, s.log)

	desired, sized, err := s.resolveAmount(ctx, engine, entry, bindings, flags)
	if err != nil {
		return err
	}

	report := model.RunReport{
		IntentType:      intent,
		EntryPoint:      entry.QualifiedName(),
		AssetType:       flags.assetType,
		RequestedAmount: amountInfo(desired, flags.decimals),
		DryRun:          flags.dryRun,
	}

	if flags.dryRun {
		res, err := engine.Probe(ctx, entry, bindings, desired)
		if err != nil {
			return err
		}
		if !res.Accepted {
			return clierr.New(clierr.CodeActionSim,
				fmt.Sprintf("dry run rejected (%s): %s", res.Classification, res.ErrorMessage))
		}
		report.Attempts = 1
		return s.emitSuccess(commandPath, report, s.lastWarnings, cacheMetaBypass())
	}

	store, err := execution.OpenStore(s.settings.ActionStorePath, s.settings.ActionLockPath)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "open action store", err)
	}
	defer func() { _ = store.Close() }()

	executor := execution.NewExecutor(client, txSigner, classifier, store, s.log)
	builder := func(amount uint64) (*chain.Transaction, error) {
		return probe.BuildTransaction(buildCfg, entry, bindings, amount)
	}
	opts := execution.ExecuteOptions{
		MaxAttempts:  exec.MaxAttempts,
		RetryBackoff: exec.RetryBackoff,
	}

	if flags.drain {
		segments, err := execution.Drain(ctx,
			func(ctx context.Context) (uint64, error) {
				return probe.FindMax(ctx, engine, entry, bindings, exec.StartGuess, exec.AmountCeiling, s.log)
			},
			func(ctx context.Context, amount uint64) (execution.Result, error) {
				action := execution.NewAction(execution.NewActionID(), intent, s.settings.Network)
				action.AssetType = flags.assetType
				action.EntryPoint = entry.QualifiedName()
				return executor.Execute(ctx, &action, builder, amount, opts)
			},
			exec.DustThreshold, s.log)
		for _, seg := range segments {
			report.Drained = append(report.Drained, model.RunSegment{
				Amount:   amountInfo(seg.Amount, flags.decimals),
				TxDigest: seg.TxDigest,
			})
			report.Attempts += seg.Attempts
		}
		if err != nil {
			return err
		}
		if len(segments) > 0 {
			last := segments[len(segments)-1]
			info := amountInfo(last.Amount, flags.decimals)
			report.ExecutedAmount = &info
			report.TxDigest = last.TxDigest
		}
		return s.emitSuccess(commandPath, report, s.lastWarnings, cacheMetaBypass())
	}

	action := execution.NewAction(execution.NewActionID(), intent, s.settings.Network)
	action.AssetType = flags.assetType
	action.EntryPoint = entry.QualifiedName()
	result, err := executor.Execute(ctx, &action, builder, desired, opts)
	if err != nil {
		return err
	}
	report.ActionID = action.ActionID
	info := amountInfo(result.Amount, flags.decimals)
	report.ExecutedAmount = &info
	report.TxDigest = result.TxDigest
	report.Attempts = result.Attempts
	if sized {
		s.lastWarnings = append(s.lastWarnings, "amount sized from simulation probing; on-chain limits may have moved since")
	}
	return s.emitSuccess(commandPath, report, s.lastWarnings, cacheMetaBypass())
}

func validateAmountFlags(flags actionFlags) error {
	explicit := strings.TrimSpace(flags.amountBase) != "" || strings.TrimSpace(flags.amountDecimal) != ""
	modes := 0
	if explicit {
		modes++
	}
	if flags.percent > 0 {
		modes++
	}
	if flags.drain {
		modes++
	}
	if modes == 0 {
		return clierr.New(clierr.CodeUsage, "one of --amount, --amount-decimal, --percent, or --drain is required")
	}
	if modes > 1 {
		return clierr.New(clierr.CodeUsage, "--amount, --percent, and --drain are mutually exclusive")
	}
	if flags.percent < 0 || flags.percent > 100 {
		return clierr.New(clierr.CodeUsage, "--percent must be between 0 and 100")
	}
	if flags.dryRun && flags.drain {
		return clierr.New(clierr.CodeUsage, "--dry-run cannot be combined with --drain")
	}
	return nil
}

// resolveAmount turns the amount flags into concrete base units. Percent
// sizing probes for the current maximum first. The sized return reports
// whether the value came from probing rather than user input.
func (s *runtimeState) resolveAmount(ctx context.Context, engine *probe.Engine, entry chain.EntryPoint, bindings roles.Bindings, flags actionFlags) (uint64, bool, error) {
	if flags.drain {
		// Drain resolves its own amounts cycle by cycle.
		return 0, true, nil
	}
	if flags.percent > 0 {
		max, err := probe.FindMax(ctx, engine, entry, bindings, s.settings.Execution.StartGuess, s.settings.Execution.AmountCeiling, s.log)
		if err != nil {
			return 0, false, err
		}
		if max == 0 {
			return 0, false, clierr.New(clierr.CodeResourceLimit, "no amount is currently accepted for this action")
		}
		amount := uint64(float64(max) * flags.percent / 100)
		if amount == 0 {
			amount = 1
		}
		s.log.Info().Uint64("max", max).Uint64("amount", amount).Float64("percent", flags.percent).Msg("amount sized from probed maximum")
		return amount, true, nil
	}
	amount, _, err := id.NormalizeAmount(flags.amountBase, flags.amountDecimal, flags.decimals)
	if err != nil {
		return 0, false, err
	}
	if amount == 0 {
		return 0, false, clierr.New(clierr.CodeUsage, "amount must be positive")
	}
	return amount, false, nil
}

func (s *runtimeState) resolveEntry(ctx context.Context, cat *catalog.Catalog, intent, override string) (chain.EntryPoint, error) {
	if strings.TrimSpace(override) != "" {
		parts := strings.Split(override, "::")
		if len(parts) != 3 {
			return chain.EntryPoint{}, clierr.New(clierr.CodeUsage, "--entry must be package::module::function")
		}
		pkg, err := id.NormalizeObjectID(parts[0])
		if err != nil {
			return chain.EntryPoint{}, clierr.Wrap(clierr.CodeUsage, "parse --entry package id", err)
		}
		return cat.FindEntry(ctx, pkg, parts[1], parts[2])
	}
	candidates, err := discover.DiscoverWithFallback(ctx, cat, intent, s.primaryPackages(), s.fallbackPackages())
	if err != nil {
		return chain.EntryPoint{}, err
	}
	return candidates[0].Entry, nil
}

func amountInfo(baseUnits uint64, decimals int) model.AmountInfo {
	return model.AmountInfo{
		AmountBaseUnits: fmt.Sprintf("%d", baseUnits),
		AmountDecimal:   id.FormatDecimal(baseUnits, decimals),
		Decimals:        decimals,
	}
}
