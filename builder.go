package passless

import (
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// Builder assembles a Machine. Zero or more With* calls, then Build once.
type Builder struct {
	config Config

	redis    *redis.Client
	volatile store.Partition
	durable  store.Partition
	provider *provider.Client
	sink     BroadcastSink
	clock    func() time.Time

	built bool
}

// New returns a Builder seeded with defaults.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client backing the volatile partition.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithVolatile overrides the volatile partition directly.
func (b *Builder) WithVolatile(p store.Partition) *Builder {
	b.volatile = p
	return b
}

// WithDurable overrides the durable partition. When unset, Build opens the
// SQLite database named in the configuration.
func (b *Builder) WithDurable(p store.Partition) *Builder {
	b.durable = p
	return b
}

// WithProvider overrides the provider client, mainly for tests pointing at
// a local stub server.
func (b *Builder) WithProvider(client *provider.Client) *Builder {
	b.provider = client
	return b
}

// WithBroadcastSink installs the observer sink.
func (b *Builder) WithBroadcastSink(sink BroadcastSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the time source, for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the Machine. A Builder builds
// at most once.
func (b *Builder) Build() (*Machine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.config.applyDefaults()
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	volatile := b.volatile
	if volatile == nil {
		if b.redis == nil {
			return nil, errors.New("a redis client or volatile partition is required")
		}
		volatile = store.NewRedisPartition(b.redis, b.config.Storage.RedisPrefix)
	}
	durable := b.durable
	if durable == nil {
		opened, err := store.OpenSQLite(b.config.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		durable = opened
	}

	client := b.provider
	if client == nil {
		client = provider.New(provider.Config{
			BaseURL:  b.config.Provider.BaseURL,
			ClientID: b.config.Provider.ClientID,
			Audience: b.config.Provider.Audience,
			Scope:    b.config.Provider.Scope,
			MaxTries: b.config.Provider.MaxTries,
			HTTPClient: &http.Client{
				Timeout: b.config.Provider.Timeout,
			},
		})
	}

	b.built = true
	return newMachine(b.config, store.New(volatile, durable), client, b.sink, b.clock), nil
}
