package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"basegraph.app/standup/core/config"
	"basegraph.app/standup/core/db"
	"basegraph.app/standup/internal/tracker"
)

type Stores struct {
	kv KV
}

func NewStores(kv KV) *Stores {
	return &Stores{kv: kv}
}

func (s *Stores) KV() KV {
	return s.kv
}

func (s *Stores) History() *Collection[History] {
	return NewCollection[History](s.kv, NamespaceHistory)
}

func (s *Stores) Channel() *Collection[Channel] {
	return NewCollection[Channel](s.kv, NamespaceChannel)
}

func (s *Stores) TrackerCredentials() *Collection[tracker.Credentials] {
	return NewCollection[tracker.Credentials](s.kv, NamespaceTrackerCredentials)
}

// Open builds the backend selected by cfg.Store.Driver. The returned close func releases
// its connections.
func Open(ctx context.Context, cfg config.Config, botToken func() string) (KV, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory, "":
		return NewMemoryKV(), func() {}, nil

	case config.StoreDriverRedis:
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("pinging redis: %w", err)
		}
		return NewRedisKV(client, cfg.Store.RedisKeyPrefix), func() { _ = client.Close() }, nil

	case config.StoreDriverPostgres:
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		kv := NewPostgresKV(database)
		if err := kv.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		return kv, database.Close, nil

	case config.StoreDriverMattermost:
		return NewMattermostKV(cfg.Mattermost.SiteURL, botToken), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
