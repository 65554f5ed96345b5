package automerge

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-session-automerge/pkg/activity"
	"github.com/goliatone/go-session-automerge/pkg/codec"
)

// Config is the declarative form of the engine options, suitable for JSON or
// YAML configuration files.
type Config struct {
	Prefix     *string        `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	TTLSeconds *int           `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	ReadOnly   bool           `json:"read_only" yaml:"read_only"`
	Encoding   string         `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Base64     bool           `json:"base64,omitempty" yaml:"base64,omitempty"`
	Activity   ActivityConfig `json:"activity" yaml:"activity"`
}

// ActivityConfig mirrors activity.Config. A nil Enabled keeps emission on.
type ActivityConfig struct {
	Enabled *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Channel string   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Verbs   []string `json:"verbs,omitempty" yaml:"verbs,omitempty"`
}

// Validate reports configuration values that cannot be turned into options.
func (c Config) Validate() error {
	if c.TTLSeconds != nil && *c.TTLSeconds < 0 {
		return fmt.Errorf("%w: ttl_seconds=%d", ErrInvalidTTL, *c.TTLSeconds)
	}
	if name := strings.TrimSpace(c.Encoding); name != "" {
		if _, err := codec.ByName(name); err != nil {
			return fmt.Errorf("automerge: encoding: %w", err)
		}
	}
	return nil
}

// Options converts the configuration into engine options. Unset fields keep
// the defaults.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var opts []Option
	if c.Prefix != nil {
		opts = append(opts, WithPrefix(*c.Prefix))
	}
	if c.TTLSeconds != nil {
		opts = append(opts, WithTTL(time.Duration(*c.TTLSeconds)*time.Second))
	}
	if c.ReadOnly {
		opts = append(opts, WithReadOnly(true))
	}
	if name := strings.TrimSpace(c.Encoding); name != "" {
		cdc, _ := codec.ByName(name)
		opts = append(opts, WithHostEncoding(CodecEncoding{Codec: cdc, Base64: c.Base64}))
	}
	enabled := true
	if c.Activity.Enabled != nil {
		enabled = *c.Activity.Enabled
	}
	opts = append(opts, WithActivityConfig(activity.Config{
		Enabled: enabled,
		Channel: c.Activity.Channel,
		Verbs:   c.Activity.Verbs,
	}))
	return opts, nil
}
