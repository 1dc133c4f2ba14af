// Package config loads server settings from defaults, an optional config
// file, CHESS_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"webchess/internal/server/processor"
	"webchess/internal/server/service"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHESS"

type Config struct {
	APIHost     string
	APIPort     int
	Dev         bool
	StoragePath string
	PIDPath     string
	PIDLock     bool

	Serve   bool
	WebHost string
	WebPort int

	Workers           int
	MoveTimeout       time.Duration
	ComputerMoveDelay time.Duration
	MaxComputerGames  int
	GameTTL           time.Duration
	WaitTimeout       time.Duration

	LogLevel  string
	LogPretty bool
}

// ErrHelp is returned when the caller asked for usage
var ErrHelp = pflag.ErrHelp

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("chess-server", pflag.ContinueOnError)

	fs.String("config", "", "Optional config file (yaml, toml or json)")

	fs.String("api-host", "localhost", "API server host")
	fs.Int("api-port", 8080, "API server port")
	fs.Bool("dev", false, "Development mode (relaxed rate limits, pretty logs)")
	fs.String("storage-path", "", "Path to SQLite database file (disables persistence if empty)")
	fs.String("pid", "", "Optional path to write PID file")
	fs.Bool("pid-lock", false, "Lock PID file to allow only one instance (requires --pid)")

	fs.Bool("serve", false, "Enable web UI server")
	fs.String("web-host", "localhost", "Web UI server host")
	fs.Int("web-port", 9090, "Web UI server port")

	fs.Int("workers", processor.DefaultWorkers, "Computer move worker count")
	fs.Duration("move-timeout", processor.DefaultMoveTimeout, "Limit for one computer move before the game is marked stuck")
	fs.Duration("computer-delay", processor.DefaultComputerMoveDelay, "Pause before the computer answers a move")
	fs.Int("max-computer-games", service.DefaultMaxComputerGames, "Maximum concurrent games with a computer player")
	fs.Duration("game-ttl", service.DefaultGameTTL, "Idle time after which a game is evicted")
	fs.Duration("wait-timeout", service.WaitTimeout, "Long-poll wait limit")

	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.Bool("log-pretty", false, "Human readable console logs")

	return fs
}

// Load parses args and merges them with the config file and environment
func Load(args []string) (*Config, error) {
	fs := flagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		APIHost:           v.GetString("api-host"),
		APIPort:           v.GetInt("api-port"),
		Dev:               v.GetBool("dev"),
		StoragePath:       v.GetString("storage-path"),
		PIDPath:           v.GetString("pid"),
		PIDLock:           v.GetBool("pid-lock"),
		Serve:             v.GetBool("serve"),
		WebHost:           v.GetString("web-host"),
		WebPort:           v.GetInt("web-port"),
		Workers:           v.GetInt("workers"),
		MoveTimeout:       v.GetDuration("move-timeout"),
		ComputerMoveDelay: v.GetDuration("computer-delay"),
		MaxComputerGames:  v.GetInt("max-computer-games"),
		GameTTL:           v.GetDuration("game-ttl"),
		WaitTimeout:       v.GetDuration("wait-timeout"),
		LogLevel:          v.GetString("log-level"),
		LogPretty:         v.GetBool("log-pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage writes flag help to w
func Usage(w io.Writer) {
	fs := flagSet()
	fs.SetOutput(w)
	fmt.Fprintln(w, "Usage: chess-server [flags]")
	fmt.Fprintln(w, "       chess-server db <init|delete|query|moves> [flags]")
	fmt.Fprintln(w)
	fs.PrintDefaults()
}

func (c *Config) Validate() error {
	var errs []error

	if c.PIDLock && c.PIDPath == "" {
		errs = append(errs, errors.New("--pid-lock requires --pid"))
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api-port %d out of range", c.APIPort))
	}
	if c.Serve && (c.WebPort < 1 || c.WebPort > 65535) {
		errs = append(errs, fmt.Errorf("web-port %d out of range", c.WebPort))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MoveTimeout <= 0 {
		errs = append(errs, errors.New("move-timeout must be positive"))
	}
	if c.ComputerMoveDelay < 0 {
		errs = append(errs, errors.New("computer-delay cannot be negative"))
	}
	if c.MaxComputerGames < 1 {
		errs = append(errs, fmt.Errorf("max-computer-games must be at least 1, got %d", c.MaxComputerGames))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log-level: %w", err))
	}

	return errors.Join(errs...)
}

// APIAddr is the listen address of the REST API
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// WebAddr is the listen address of the web UI
func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.WebHost, c.WebPort)
}

func (c *Config) ServiceConfig() service.Config {
	return service.Config{
		MaxComputerGames: c.MaxComputerGames,
		GameTTL:          c.GameTTL,
		WaitTimeout:      c.WaitTimeout,
	}
}

func (c *Config) ProcessorConfig() processor.Config {
	return processor.Config{
		Workers:           c.Workers,
		ComputerMoveDelay: c.ComputerMoveDelay,
		MoveTimeout:       c.MoveTimeout,
	}
}

// Logger builds the application logger. Dev mode implies pretty output.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if c.LogPretty || c.Dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
