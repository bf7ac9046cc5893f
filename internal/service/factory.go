package service

import (
	"context"

	"basegraph.app/standup/core/config"
	"basegraph.app/standup/internal/conversation"
	"basegraph.app/standup/internal/issuecache"
	"basegraph.app/standup/internal/messaging"
	"basegraph.app/standup/internal/reminder"
	"basegraph.app/standup/internal/store"
	"basegraph.app/standup/internal/tracker"
)

// Services wires the process-wide collaborators: one registry, one cache holder and one
// reminder manager shared by every action.
type Services struct {
	stores    *store.Stores
	clients   *messaging.Factory
	holder    *issuecache.Holder
	registry  *conversation.Registry
	reminders *reminder.Manager
	open      TrackerOpener

	standup   StandupService
	settings  SettingsService
	bootstrap *Bootstrapper
}

func NewServices(cfg config.Config, stores *store.Stores, clients *messaging.Factory, opts ...reminder.Option) *Services {
	s := &Services{
		stores:  stores,
		clients: clients,
		holder:  issuecache.NewHolder(),
	}

	s.open = func(ctx context.Context, creds tracker.Credentials) (*issuecache.Cache, error) {
		return issuecache.Open(ctx, creds, issuecache.OpenOptions{
			Workflow:         cfg.Workflow,
			RefreshInterval:  cfg.Tracker.RefreshInterval,
			GitHubGraphQLURL: cfg.Tracker.GitHubGraphQLURL,
			Timeout:          cfg.OutboundTimeout,
		})
	}

	deps := conversation.Deps{
		Bot:             clients.BotMessenger(),
		Histories:       stores.History(),
		Channels:        stores.Channel(),
		Caches:          s.holder,
		LinkFormat:      cfg.Report.IssueLinkFormat,
		ProjectBoardURL: cfg.Tracker.ProjectBoardURL,
		Timeout:         cfg.OutboundTimeout,
	}
	s.registry = conversation.NewRegistry(deps.Constructor())
	s.standup = NewStandupService(s.registry, clients)
	s.reminders = reminder.NewManager(stores.KV(), s.standup.Remind, opts...)

	s.settings = NewSettingsService(SettingsDeps{
		Bot:         clients.BotMessenger(),
		Clients:     clients,
		Channels:    stores.Channel(),
		Credentials: stores.TrackerCredentials(),
		Reminders:   s.reminders,
		Registry:    s.registry,
		Holder:      s.holder,
		OpenTracker: s.open,
	})
	s.bootstrap = NewBootstrapper(BootstrapDeps{
		Channels:    stores.Channel(),
		Credentials: stores.TrackerCredentials(),
		Reminders:   s.reminders,
		Holder:      s.holder,
		OpenTracker: s.open,
	})
	return s
}

func (s *Services) Standup() StandupService {
	return s.standup
}

func (s *Services) Settings() SettingsService {
	return s.settings
}

func (s *Services) Bootstrapper() *Bootstrapper {
	return s.bootstrap
}

func (s *Services) Clients() *messaging.Factory {
	return s.clients
}

func (s *Services) Registry() *conversation.Registry {
	return s.registry
}

func (s *Services) Holder() *issuecache.Holder {
	return s.holder
}

func (s *Services) Reminders() *reminder.Manager {
	return s.reminders
}

// Close stops reminders and the cache refresh and waits for in-flight side effects.
func (s *Services) Close() {
	s.reminders.Stop()
	s.holder.Close()
	s.registry.Wait()
}

// Health is a snapshot of what the process has loaded.
type Health struct {
	Ready         bool
	Tracker       bool
	Conversations int
}

func (s *Services) Health() Health {
	return Health{
		Ready:         s.bootstrap.Ready(),
		Tracker:       s.holder.Get() != nil,
		Conversations: s.registry.Len(),
	}
}
