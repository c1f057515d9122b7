package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/keelerlabs/lenderctl/internal/discover"
	"github.com/keelerlabs/lenderctl/internal/model"
	"github.com/keelerlabs/lenderctl/internal/roles"
)

func (s *runtimeState) newDiscoverCommand() *cobra.Command {
	var action string
	var limit int
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Rank candidate entry points for an action keyword",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			client, err := s.dialChain(ctx)
			if err != nil {
				return err
			}
			cat := s.newCatalog(client)

			candidates, err := discover.DiscoverWithFallback(ctx, cat, action, s.primaryPackages(), s.fallbackPackages())
			if err != nil {
				return err
			}
			if limit > 0 && len(candidates) > limit {
				candidates = candidates[:limit]
			}

			out := make([]model.EntryCandidate, 0, len(candidates))
			for _, c := range candidates {
				params := make([]string, 0, len(c.Entry.Parameters))
				for _, p := range c.Entry.Parameters {
					params = append(params, roles.Classify(p).String())
				}
				out = append(out, model.EntryCandidate{
					Package:    c.Entry.PackageID,
					Module:     c.Entry.Module,
					Function:   c.Entry.Function,
					Score:      c.Score,
					Parameters: params,
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), out, nil, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "Action keyword (deposit|withdraw|borrow|repay)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum candidates to return")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
