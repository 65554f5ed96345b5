package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	automerge "github.com/goliatone/go-session-automerge"
	"github.com/goliatone/go-session-automerge/pkg/document"
	"github.com/goliatone/go-session-automerge/pkg/kv"
	"github.com/goliatone/go-session-automerge/pkg/logging/logruslog"
)

type app struct {
	log *logrus.Logger
	out io.Writer

	configPath string
	backend    string
	addr       string
	codec      string
	prefix     string
	ttl        time.Duration
	verbose    bool

	open func(storeSettings) (kv.Store, func() error, error)
}

func newApp(log *logrus.Logger, out io.Writer) *app {
	return &app{log: log, out: out, open: openStore}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and edit stored sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.verbose {
				a.log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file with store and session sections")
	flags.StringVar(&a.backend, "backend", "", "store backend: redis, goredis or memcache")
	flags.StringVar(&a.addr, "addr", "", "store address")
	flags.StringVar(&a.codec, "codec", "", "store codec: json, msgpack or yaml")
	flags.StringVar(&a.prefix, "prefix", "", "session key prefix")
	flags.DurationVar(&a.ttl, "ttl", 0, "session TTL applied on write")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log engine events")

	root.AddCommand(a.getCommand(), a.patchCommand(), a.deleteCommand())
	return root
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Print a session document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *automerge.Manager) error {
				engine := m.Engine()
				doc := engine.Load(cmd.Context(), engine.Key(args[0]))
				if engine.ReadOnly() {
					return fmt.Errorf("sessionctl: session %q could not be read", args[0])
				}
				return a.printDocument(doc)
			})
		},
	}
}

func (a *app) patchCommand() *cobra.Command {
	var removals []string
	cmd := &cobra.Command{
		Use:   "patch <session-id> [key=value ...]",
		Short: "Set or remove keys in a session",
		Long: "Set or remove keys in a session. Values are parsed as JSON and fall back to plain strings.\n" +
			"Only the named keys are merged; concurrent writers keep their other keys.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			if len(assignments) == 0 && len(removals) == 0 {
				return fmt.Errorf("sessionctl: nothing to patch")
			}
			return a.withManager(func(m *automerge.Manager) error {
				ctx := cmd.Context()
				engine := m.Engine()
				key := engine.Key(args[0])
				doc := engine.Load(ctx, key)
				if engine.ReadOnly() {
					return fmt.Errorf("sessionctl: session %q could not be read", args[0])
				}
				for k, v := range assignments {
					doc[k] = v
				}
				for _, k := range removals {
					doc[k] = document.Removed
				}
				merged, err := engine.Commit(ctx, key, doc)
				if err != nil {
					return err
				}
				return a.printDocument(merged)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&removals, "remove", "r", nil, "keys to remove")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(func(m *automerge.Manager) error {
				if !m.Handler().Destroy(cmd.Context(), args[0]) {
					return fmt.Errorf("sessionctl: delete %q failed", args[0])
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) withManager(run func(*automerge.Manager) error) error {
	cfg, err := loadFileConfig(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(&cfg)

	store, closeStore, err := a.open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if closeStore == nil {
			return
		}
		if err := closeStore(); err != nil {
			a.log.WithError(err).Warn("close store")
		}
	}()

	opts, err := cfg.Session.Options()
	if err != nil {
		return err
	}
	opts = append(opts, automerge.WithLogger(logruslog.New(a.log).WithFields(logrus.Fields{
		"backend": cfg.Store.Backend,
	})))
	manager, err := automerge.NewManager(store, opts...)
	if err != nil {
		return err
	}
	return run(manager)
}

func (a *app) applyFlags(cfg *fileConfig) {
	if a.backend != "" {
		cfg.Store.Backend = a.backend
	}
	if a.addr != "" {
		cfg.Store.Addr = a.addr
	}
	if a.codec != "" {
		cfg.Store.Codec = a.codec
	}
	if a.prefix != "" {
		prefix := a.prefix
		cfg.Session.Prefix = &prefix
	}
	if a.ttl > 0 {
		seconds := int(a.ttl / time.Second)
		cfg.Session.TTLSeconds = &seconds
	}
}

func (a *app) printDocument(doc document.Document) error {
	if doc == nil {
		doc = document.New()
	}
	out, err := json.MarshalIndent(map[string]any(doc), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(out))
	return err
}

func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("sessionctl: expected key=value, got %q", arg)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}
