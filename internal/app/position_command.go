package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/keelerlabs/lenderctl/internal/catalog"
	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/execution/signer"
	"github.com/keelerlabs/lenderctl/internal/model"
)

func (s *runtimeState) newPositionCommand() *cobra.Command {
	var owner string
	var assetType string
	var decimals int
	var scanDepth int
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Show the caller's lending position and collateral",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			if owner == "" {
				txSigner, err := signer.NewLocalSignerFromEnv("")
				if err != nil {
					return clierr.Wrap(clierr.CodeUsage, "no --owner given and no signing key available", err)
				}
				owner = txSigner.Address()
			}
			if s.settings.Protocol.Package == "" {
				return clierr.New(clierr.CodeUsage, "protocol package is not configured (LENDER_PROTOCOL_PACKAGE)")
			}

			client, err := s.dialChain(ctx)
			if err != nil {
				return err
			}
			cat := s.newCatalog(client)

			position, err := cat.FindPosition(ctx, s.settings.Protocol.Package, owner)
			if err != nil {
				return err
			}
			summary := model.PositionSummary{
				PositionID:   position.Ref.ID,
				CapabilityID: position.Capability.ID,
				Owner:        owner,
			}

			var warnings []string
			if assetType != "" {
				if scanDepth <= 0 {
					scanDepth = catalog.DefaultScanDepth
				}
				balance := cat.FindCollateral(ctx, position.Ref.ID, assetType, scanDepth)
				if balance.Found {
					summary.Collateral = append(summary.Collateral, model.CollateralInfo{
						AssetType: assetType,
						Amount:    amountInfo(balance.Balance, decimals),
						EntryID:   balance.EntryID,
					})
				} else {
					warnings = append(warnings, "collateral balance not found within scan depth; treat as unknown, not zero")
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), summary, warnings, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Address to inspect (defaults to the signing key's address)")
	cmd.Flags().StringVar(&assetType, "asset-type", "", "Scan collateral for this asset type")
	cmd.Flags().IntVar(&decimals, "decimals", 9, "Asset decimals for display formatting")
	cmd.Flags().IntVar(&scanDepth, "scan-depth", catalog.DefaultScanDepth, "Maximum dynamic-field depth for the collateral scan")
	return cmd
}
