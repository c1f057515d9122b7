package app

import (
	"context"

	"github.com/spf13/cobra"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/execution/signer"
	"github.com/keelerlabs/lenderctl/internal/httpx"
	"github.com/keelerlabs/lenderctl/internal/points"
)

func (s *runtimeState) newPointsCommand() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Show reward points standing from the off-chain points API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			if address == "" {
				txSigner, err := signer.NewLocalSignerFromEnv("")
				if err != nil {
					return clierr.Wrap(clierr.CodeUsage, "no --address given and no signing key available", err)
				}
				address = txSigner.Address()
			}

			client := points.New(httpx.New(s.settings.Timeout, s.settings.Retries), s.settings.PointsAPIURL, s.settings.PointsAPIKey)
			summary, err := client.Fetch(ctx, address)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), summary, nil, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Address to query (defaults to the signing key's address)")
	return cmd
}
