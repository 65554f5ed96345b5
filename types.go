package automerge

import (
	"time"

	"github.com/goliatone/go-session-automerge/pkg/activity"
)

// Conflict describes a key that the current request changed while another
// request changed it too. Initial and External hold document.Absent when the
// key was missing; Value holds document.Removed when the request deleted it.
type Conflict struct {
	Key      string
	Initial  any
	Value    any
	External any
}

// Option configures an Engine or Manager.
type Option func(*config)

type config struct {
	prefix         string
	ttl            time.Duration
	resolver       ConflictResolver
	logger         Logger
	encoding       HostEncoding
	activityHooks  activity.Hooks
	activityConfig activity.Config
	readOnly       bool
	now            func() time.Time
}

const (
	// DefaultPrefix is prepended to session identifiers to build store keys.
	DefaultPrefix = "session_"
	// DefaultTTL is reapplied on every successful store write.
	DefaultTTL = 3600 * time.Second
	// DefaultActivityChannel tags activity events emitted by the engine.
	DefaultActivityChannel = activity.DefaultChannel
)

func defaultConfig() config {
	return config{
		prefix:   DefaultPrefix,
		ttl:      DefaultTTL,
		resolver: LastWriterWins(),
		logger:   noopLogger{},
		encoding: JSONEncoding(),
		activityConfig: activity.Config{
			Enabled: true,
			Channel: DefaultActivityChannel,
		},
		now: time.Now,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg config) validate() error {
	if cfg.ttl < 0 {
		return ErrInvalidTTL
	}
	return nil
}
