package automerge

import (
	"strings"

	"github.com/goliatone/go-session-automerge/pkg/activity"
)

// WithActivityHooks sets the hooks that receive session events. Nil entries
// are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	hooks = hooks.Compact()
	return func(cfg *config) {
		cfg.activityHooks = hooks
	}
}

// WithActivityConfig controls emission, the default channel and the verb
// filter. An empty channel keeps the current one.
func WithActivityConfig(activityCfg activity.Config) Option {
	verbs := append([]string(nil), activityCfg.Verbs...)
	return func(cfg *config) {
		cfg.activityConfig.Enabled = activityCfg.Enabled
		if channel := strings.TrimSpace(activityCfg.Channel); channel != "" {
			cfg.activityConfig.Channel = channel
		}
		cfg.activityConfig.Verbs = verbs
	}
}

// ActivityHooks returns a copy of the hooks configured on the manager.
func (m *Manager) ActivityHooks() activity.Hooks {
	if m == nil {
		return nil
	}
	return m.cfg.activityHooks.Compact()
}

// SetActor attributes the events of this engine to actor.
func (e *Engine) SetActor(actor activity.Actor) {
	e.actor = actor
}

func (cfg config) newEmitter() *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, cfg.activityConfig, activity.WithEmitterClock(cfg.now))
}
