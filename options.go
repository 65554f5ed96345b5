package automerge

import (
	"strings"
	"time"
)

// WithPrefix sets the prefix prepended to session identifiers. Surrounding
// whitespace is trimmed; an empty prefix is allowed.
func WithPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.prefix = strings.TrimSpace(prefix)
	}
}

// WithTTL sets the expiry reapplied on every store write. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) {
		cfg.ttl = ttl
	}
}

// WithResolver sets the conflict resolution policy. Nil restores LastWriterWins.
func WithResolver(resolver ConflictResolver) Option {
	return func(cfg *config) {
		if resolver == nil {
			cfg.resolver = LastWriterWins()
			return
		}
		cfg.resolver = resolver
	}
}

// WithReadOnly starts engines in read-only mode: writes report success
// without touching the store.
func WithReadOnly(readOnly bool) Option {
	return func(cfg *config) {
		cfg.readOnly = readOnly
	}
}

// WithClock overrides the clock used for durations and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.now = now
		}
	}
}
