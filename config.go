package libsession

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type AuthMode string

const (
	// AuthModeQuery sends the bearer token as the "token" query parameter.
	AuthModeQuery AuthMode = "query"
	// AuthModeHeader sends it as an "Authorization: Bearer" header.
	AuthModeHeader AuthMode = "header"
)

const (
	DefaultBaseURL              = "http://localhost:5000"
	DefaultPath                 = "/ws"
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 2 * time.Second
	DefaultReconnectMultiplier  = 1.5
	DefaultMaxReconnectDelay    = 30 * time.Second
	DefaultConnectTimeout       = 5 * time.Second
	DefaultPingInterval         = 25 * time.Second
)

// Config holds everything a Manager reads from its environment.
type Config struct {
	// BaseURL is the HTTP(S) origin of the API; the scheme is mapped to ws/wss.
	BaseURL string `toml:"base_url" yaml:"base_url"`
	// Path is the realtime endpoint appended to BaseURL.
	Path                 string        `toml:"path" yaml:"path"`
	MaxReconnectAttempts int           `toml:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `toml:"reconnect_delay" yaml:"reconnect_delay"`
	ReconnectMultiplier  float64       `toml:"reconnect_multiplier" yaml:"reconnect_multiplier"`
	MaxReconnectDelay    time.Duration `toml:"max_reconnect_delay" yaml:"max_reconnect_delay"`
	// ConnectTimeout bounds a single dial. Zero disables the bound.
	ConnectTimeout time.Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	// PingInterval enables active keep-alive when positive.
	PingInterval time.Duration `toml:"ping_interval" yaml:"ping_interval"`
	AuthMode     AuthMode      `toml:"auth_mode" yaml:"auth_mode"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		Path:                 DefaultPath,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		ReconnectMultiplier:  DefaultReconnectMultiplier,
		MaxReconnectDelay:    DefaultMaxReconnectDelay,
		ConnectTimeout:       DefaultConnectTimeout,
		PingInterval:         DefaultPingInterval,
		AuthMode:             AuthModeQuery,
	}
}

// Validate rejects configurations a Manager cannot run with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base url is required")
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.Errorf("config: max reconnect attempts must be >= 0, got %d", c.MaxReconnectAttempts)
	}
	if c.ReconnectDelay < 0 || c.MaxReconnectDelay < 0 || c.ConnectTimeout < 0 || c.PingInterval < 0 {
		return errors.New("config: durations must not be negative")
	}
	if c.MaxReconnectDelay == 0 {
		return errors.New("config: max reconnect delay must be positive")
	}
	if math.IsNaN(c.ReconnectMultiplier) || math.IsInf(c.ReconnectMultiplier, 0) {
		return errors.Errorf("config: reconnect multiplier must be finite, got %v", c.ReconnectMultiplier)
	}
	switch c.AuthMode {
	case AuthModeQuery, AuthModeHeader:
	default:
		return errors.Errorf("config: unknown auth mode %q", c.AuthMode)
	}
	return nil
}

// LoadConfigFromEnv returns DefaultConfig overlaid with the REALTIME_* variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile decodes a TOML (.toml) or YAML (.yaml, .yml) file on top of the
// defaults, then applies environment overrides.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "decode %s", path)
		}
	case ".yaml", ".yml":
		bts, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read %s", path)
		}
		if err := yaml.Unmarshal(bts, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "decode %s", path)
		}
	default:
		return cfg, errors.Errorf("config: unsupported file type %q", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("REALTIME_BASE_URL"); ok && v != "" {
		c.BaseURL = v
	} else if v, ok := lookup("API_URL"); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup("REALTIME_PATH"); ok && v != "" {
		c.Path = v
	}
	if v, ok := lookup("REALTIME_MAX_RECONNECT_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "REALTIME_MAX_RECONNECT_ATTEMPTS")
		}
		c.MaxReconnectAttempts = n
	}
	if v, ok := lookup("REALTIME_RECONNECT_MULTIPLIER"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "REALTIME_RECONNECT_MULTIPLIER")
		}
		c.ReconnectMultiplier = f
	}
	if v, ok := lookup("REALTIME_AUTH_MODE"); ok && v != "" {
		c.AuthMode = AuthMode(strings.ToLower(v))
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REALTIME_RECONNECT_DELAY", &c.ReconnectDelay},
		{"REALTIME_MAX_RECONNECT_DELAY", &c.MaxReconnectDelay},
		{"REALTIME_CONNECT_TIMEOUT", &c.ConnectTimeout},
		{"REALTIME_PING_INTERVAL", &c.PingInterval},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return errors.Wrap(err, d.key)
		}
		*d.dst = parsed
	}

	return nil
}

// parseDuration accepts Go duration strings ("2s") and bare integers as milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
