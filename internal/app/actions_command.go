package app

import (
	"github.com/spf13/cobra"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/execution"
	"github.com/keelerlabs/lenderctl/internal/model"
)

func (s *runtimeState) newActionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "actions", Short: "Inspect stored action records"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := execution.OpenStore(s.settings.ActionStorePath, s.settings.ActionLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open action store", err)
			}
			defer func() { _ = store.Close() }()

			actions, err := store.List(status, limit)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list actions", err)
			}
			out := make([]model.ActionSummary, 0, len(actions))
			for _, a := range actions {
				out = append(out, model.ActionSummary{
					ActionID:   a.ActionID,
					IntentType: a.IntentType,
					Status:     string(a.Status),
					Network:    a.Network,
					TxDigest:   a.TxDigest,
					UpdatedAt:  a.UpdatedAt,
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), out, nil, cacheMetaBypass())
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status (planned|running|completed|failed)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum actions to return")

	var actionID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show one action with its full attempt history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := execution.OpenStore(s.settings.ActionStorePath, s.settings.ActionLockPath)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "open action store", err)
			}
			defer func() { _ = store.Close() }()

			action, err := store.Get(actionID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load action", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), action, nil, cacheMetaBypass())
		},
	}
	statusCmd.Flags().StringVar(&actionID, "id", "", "Action id")
	_ = statusCmd.MarkFlagRequired("id")

	root.AddCommand(list)
	root.AddCommand(statusCmd)
	return root
}
