// Package config provides Viper-based configuration loading for the
// Omniverse space server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name is the server identifier used in logs.
	Name string `mapstructure:"name"`
}

// WebSocketConfig holds WebSocket acceptor settings.
type WebSocketConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// Path is the HTTP path of the WebSocket upgrade endpoint.
	Path string `mapstructure:"path"`
	// ReadLimit is the maximum size in bytes of a single inbound frame.
	ReadLimit int64 `mapstructure:"read_limit"`
	// WriteTimeout is the per-write deadline for outbound frames.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is the interval between server-initiated pings.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// PongTimeout is the duration after which a connection that has not
	// answered a ping is considered dead.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// SendBuffer is the per-connection outbound queue capacity in frames.
	SendBuffer int `mapstructure:"send_buffer"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// SpaceConfig holds the defaults applied to every joining session.
type SpaceConfig struct {
	// SpawnX is the X coordinate assigned on join.
	SpawnX float64 `mapstructure:"spawn_x"`
	// SpawnY is the Y coordinate assigned on join.
	SpawnY float64 `mapstructure:"spawn_y"`
	// DefaultCharacter is the character variant assigned until a client
	// selects one.
	DefaultCharacter string `mapstructure:"default_character"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Space     SpaceConfig     `mapstructure:"space"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSpace(c.Space); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Name == "" {
		return errors.New("server.name must not be empty")
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.Port < 1 || w.Port > 65535 {
		errs = append(errs, fmt.Sprintf("websocket.port must be 1-65535, got %d", w.Port))
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with '/', got %q", w.Path))
	}
	if w.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("websocket.read_limit must be >= 1, got %d", w.ReadLimit))
	}
	if w.WriteTimeout < 0 {
		errs = append(errs, "websocket.write_timeout must not be negative")
	}
	if w.PingInterval < 0 {
		errs = append(errs, "websocket.ping_interval must not be negative")
	}
	if w.PingInterval > 0 && w.PongTimeout <= w.PingInterval {
		errs = append(errs, "websocket.pong_timeout must exceed websocket.ping_interval")
	}
	// Without pings the pong deadline is never refreshed and every idle
	// connection would be cut; the two settings are only valid together.
	if w.PingInterval == 0 && w.PongTimeout != 0 {
		errs = append(errs, "websocket.pong_timeout requires a non-zero websocket.ping_interval")
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSpace(s SpaceConfig) error {
	var errs []string
	if s.SpawnX < 0 {
		errs = append(errs, fmt.Sprintf("space.spawn_x must not be negative, got %v", s.SpawnX))
	}
	if s.SpawnY < 0 {
		errs = append(errs, fmt.Sprintf("space.spawn_y must not be negative, got %v", s.SpawnY))
	}
	if s.DefaultCharacter == "" {
		errs = append(errs, "space.default_character must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with OMNIVERSE_ prefix
	v.SetEnvPrefix("OMNIVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default builds a Config carrying only the defaults, without reading a file.
//
// Postcondition: Returns a valid Config.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "omniverse")

	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 8080)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_limit", 65536)
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.send_buffer", 64)

	v.SetDefault("space.spawn_x", 190)
	v.SetDefault("space.spawn_y", 190)
	v.SetDefault("space.default_character", "adam")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
