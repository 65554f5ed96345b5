package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	automerge "github.com/goliatone/go-session-automerge"
	"github.com/goliatone/go-session-automerge/internal/hydrate"
	"github.com/goliatone/go-session-automerge/pkg/codec"
	"github.com/goliatone/go-session-automerge/pkg/kv"
	"github.com/goliatone/go-session-automerge/pkg/kv/goredisstore"
	"github.com/goliatone/go-session-automerge/pkg/kv/memcachestore"
	"github.com/goliatone/go-session-automerge/pkg/kv/redigostore"
)

const (
	backendRedigo   = "redis"
	backendGoRedis  = "goredis"
	backendMemcache = "memcache"
)

// storeSettings is the store section of the config file.
type storeSettings struct {
	Backend     string `json:"backend"`
	Addr        string `json:"addr"`
	Codec       string `json:"codec"`
	MaxIdle     int    `json:"max_idle"`
	IdleTimeout int    `json:"idle_timeout_seconds"`
}

func defaultStoreSettings() storeSettings {
	return storeSettings{
		Backend:     backendRedigo,
		Addr:        "localhost:6379",
		Codec:       "json",
		MaxIdle:     4,
		IdleTimeout: 240,
	}
}

// fileConfig groups the sections read from --config.
type fileConfig struct {
	Store   storeSettings
	Session automerge.Config
}

func loadFileConfig(path string) (fileConfig, error) {
	cfg := fileConfig{Store: defaultStoreSettings()}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("sessionctl: read config: %w", err)
	}

	storeDecoder := hydrate.NewDecoder[storeSettings](
		hydrate.WithDefaults[storeSettings](storeDefaults()),
		hydrate.WithStrict[storeSettings](),
	)
	cfg.Store, err = storeDecoder.DecodeYAML(hydrate.Context{Source: path, Section: "store"}, raw)
	if err != nil {
		return cfg, err
	}

	sessionDecoder := hydrate.NewDecoder[automerge.Config](
		hydrate.WithValidator[automerge.Config](func(_ hydrate.Context, c *automerge.Config) error {
			return c.Validate()
		}),
	)
	cfg.Session, err = sessionDecoder.DecodeYAML(hydrate.Context{Source: path, Section: "session"}, raw)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func storeDefaults() map[string]any {
	defaults := defaultStoreSettings()
	return map[string]any{
		"backend":              defaults.Backend,
		"addr":                 defaults.Addr,
		"codec":                defaults.Codec,
		"max_idle":             defaults.MaxIdle,
		"idle_timeout_seconds": defaults.IdleTimeout,
	}
}

// openStore builds the configured backend. The returned closer releases
// connections held by the backend.
func openStore(settings storeSettings) (kv.Store, func() error, error) {
	cdc, err := codec.ByName(settings.Codec)
	if err != nil {
		return nil, nil, err
	}
	switch strings.ToLower(strings.TrimSpace(settings.Backend)) {
	case backendRedigo, "":
		idle := time.Duration(settings.IdleTimeout) * time.Second
		backend := redigostore.New(redigostore.NewPool(settings.Addr, settings.MaxIdle, idle))
		return kv.NewCodecStore(backend, cdc), backend.Close, nil
	case backendGoRedis:
		client := redis.NewClient(&redis.Options{Addr: settings.Addr})
		return kv.NewCodecStore(goredisstore.New(client), cdc), client.Close, nil
	case backendMemcache:
		servers := strings.Split(settings.Addr, ",")
		client := memcachestore.NewClient(servers...)
		return kv.NewCodecStore(memcachestore.New(client), cdc), closerFor(client), nil
	default:
		return nil, nil, fmt.Errorf("sessionctl: unknown backend %q", settings.Backend)
	}
}

func closerFor(client any) func() error {
	if c, ok := client.(interface{ Close() error }); ok {
		return c.Close
	}
	return nil
}
