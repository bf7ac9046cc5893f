package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/standup/internal/store"
)

func newHistoryCmd() *cobra.Command {
	return needsStore(&cobra.Command{
		Use:   "history [user-id]",
		Short: "Show the goals users reported last",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			histories := envFrom(cmd).Stores.History()

			if len(args) == 1 {
				history, err := histories.Get(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no history for user %s", args[0])
				}
				if err != nil {
					return fmt.Errorf("loading history: %w", err)
				}
				return write(cmd, map[string]store.History{args[0]: history})
			}

			all, err := histories.All(ctx)
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}
			return write(cmd, all)
		},
	})
}
