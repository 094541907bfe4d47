package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	countdown      time.Duration
	dataDir        string
	defaultHints   int
	gracePeriod    time.Duration
	jwtSecret      string
	legacyHints    bool
	port           int
	prefix         string
	prize          int
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.gracePeriod <= 0 {
		return fmt.Errorf("invalid grace period: %s", c.gracePeriod)
	}
	if c.defaultHints < 0 {
		return fmt.Errorf("invalid default hint count: %d", c.defaultHints)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SUDOKU_ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "suduko-arena",
		Short:         "Real-time multiplayer sudoku server with authoritative match sessions.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SUDOKU_ARENA_BIND)")
	fs.DurationVar(&cfg.countdown, "countdown", 3*time.Second, "countdown before a ready match starts (env: SUDOKU_ARENA_COUNTDOWN)")
	fs.StringVar(&cfg.dataDir, "data-dir", "data", "directory for match records (env: SUDOKU_ARENA_DATA_DIR)")
	fs.IntVar(&cfg.defaultHints, "default-hints", 3, "hints allowed per player when a match record specifies none (env: SUDOKU_ARENA_DEFAULT_HINTS)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", 30*time.Second, "time a disconnected player's slot is preserved (env: SUDOKU_ARENA_GRACE_PERIOD)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HMAC secret for identity cookie tokens; unsigned visitors play anonymously (env: SUDOKU_ARENA_JWT_SECRET)")
	fs.BoolVar(&cfg.legacyHints, "legacy-hints", false, "offer arbitrary hint digits instead of reading the solution (env: SUDOKU_ARENA_LEGACY_HINTS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SUDOKU_ARENA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SUDOKU_ARENA_PREFIX)")
	fs.IntVar(&cfg.prize, "prize", 0, "prize credited to the winner of a completed match (env: SUDOKU_ARENA_PRIZE)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SUDOKU_ARENA_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle match sessions are abandoned (env: SUDOKU_ARENA_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SUDOKU_ARENA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SUDOKU_ARENA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SUDOKU_ARENA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SUDOKU_ARENA_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("suduko-arena v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
