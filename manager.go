package automerge

import (
	"time"

	"github.com/goliatone/go-session-automerge/pkg/activity"
	"github.com/goliatone/go-session-automerge/pkg/kv"
)

// Manager holds long-lived configuration and hands out a fresh Engine per
// request. It is safe for concurrent use.
type Manager struct {
	store   kv.Store
	cfg     config
	emitter *activity.Emitter
}

// NewManager validates opts and binds them to store.
func NewManager(store kv.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		store:   store,
		cfg:     cfg,
		emitter: cfg.newEmitter(),
	}, nil
}

// Engine returns a new engine for a single request.
func (m *Manager) Engine() *Engine {
	return newEngine(m.store, m.cfg, m.emitter)
}

// Handler returns a new host handler for a single request.
func (m *Manager) Handler() *Handler {
	return NewHandler(m.Engine())
}

// Store returns the backing store.
func (m *Manager) Store() kv.Store {
	return m.store
}

// Prefix returns the configured key prefix.
func (m *Manager) Prefix() string {
	return m.cfg.prefix
}

// TTL returns the configured expiry.
func (m *Manager) TTL() time.Duration {
	return m.cfg.ttl
}
