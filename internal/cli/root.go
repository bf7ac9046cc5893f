package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/store"
	"basegraph.app/standup/internal/tracker"
)

// Env is what every subcommand works against.
type Env struct {
	Config config.Config
	Stores *store.Stores
	// OpenTracker builds a cache for the stored credentials.
	OpenTracker func(ctx context.Context, creds tracker.Credentials) (*issuecache.Cache, error)
}

// Loader opens the environment once per invocation. The returned func releases it.
type Loader func(ctx context.Context) (*Env, func(), error)

// DefaultLoader reads the CLI configuration and opens the configured store.
func DefaultLoader(ctx context.Context) (*Env, func(), error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg, os.Stderr)))

	kv, closeStore, err := store.Open(ctx, cfg, func() string { return cfg.Mattermost.BotToken })
	if err != nil {
		return nil, nil, err
	}

	env := &Env{
		Config: cfg,
		Stores: store.NewStores(kv),
		OpenTracker: func(ctx context.Context, creds tracker.Credentials) (*issuecache.Cache, error) {
			return issuecache.Open(ctx, creds, issuecache.OpenOptions{
				Workflow:         cfg.Workflow,
				RefreshInterval:  cfg.Tracker.RefreshInterval,
				GitHubGraphQLURL: cfg.Tracker.GitHubGraphQLURL,
				Timeout:          cfg.OutboundTimeout,
			})
		},
	}
	return env, closeStore, nil
}

type envKey struct{}

// NewRootCmd builds standupctl. Subcommands that need the store get it from load in
// PersistentPreRunE; schema runs without one.
func NewRootCmd(load Loader) *cobra.Command {
	var format string
	var release func()

	root := &cobra.Command{
		Use:           "standupctl",
		Short:         "Inspect the standup bot's state",
		Long:          "standupctl reads the standup bot's store and issue tracker: cached issues, goal history and reminder schedules.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseFormat(format); err != nil {
				return err
			}
			if cmd.Annotations["store"] != "true" {
				return nil
			}
			env, closeEnv, err := load(cmd.Context())
			if err != nil {
				return err
			}
			release = closeEnv
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, env))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if release != nil {
				release()
			}
		},
	}
	root.PersistentFlags().StringVarP(&format, "output", "o", string(formatYAML), "output format (yaml|json)")

	root.AddCommand(
		newIssuesCmd(),
		newHistoryCmd(),
		newRemindersCmd(),
		newSchemaCmd(),
	)
	return root
}

func needsStore(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["store"] = "true"
	return cmd
}

func envFrom(cmd *cobra.Command) *Env {
	env, _ := cmd.Context().Value(envKey{}).(*Env)
	return env
}

func Execute() error {
	return NewRootCmd(DefaultLoader).ExecuteContext(context.Background())
}
