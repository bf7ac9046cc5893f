package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/store"
)

type issueList struct {
	RefreshedAt time.Time             `json:"refreshed_at" yaml:"refreshed_at"`
	Count       int                   `json:"count" yaml:"count"`
	Issues      []issuecache.Snapshot `json:"issues" yaml:"issues"`
}

func newIssuesCmd() *cobra.Command {
	var since time.Duration
	var all bool

	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List the tracker items the bot offers in its issue picker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env := envFrom(cmd)

			creds, err := env.Stores.TrackerCredentials().Get(ctx, store.SingletonID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no issue tracker configured, run /standup settings tracker first")
			}
			if err != nil {
				return fmt.Errorf("loading tracker credentials: %w", err)
			}

			cache, err := env.OpenTracker(ctx, creds)
			if err != nil {
				return fmt.Errorf("opening tracker: %w", err)
			}
			cache.Stop()
			if err := cache.Refresh(ctx); err != nil {
				return fmt.Errorf("refreshing issues: %w", err)
			}

			items := cache.Snapshot()
			if !all {
				items = cache.Filter(time.Now().Add(-since))
			}
			return write(cmd, issueList{
				RefreshedAt: cache.RefreshedAt(),
				Count:       len(items),
				Issues:      items,
			})
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "include done items that moved within this window")
	cmd.Flags().BoolVar(&all, "all", false, "list every item, including intake and old done items")
	return needsStore(cmd)
}
