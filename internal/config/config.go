// Package config loads the server configuration from defaults, an optional .env file,
// an optional config file, environment variables and command-line flags, in increasing
// order of precedence. A .env file only fills keys that nothing else sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"recruitcrm-mcp/internal/recruitcrm"
)

// ErrMissingCredential is returned by Load when no RecruitCRM token is configured.
var ErrMissingCredential = errors.New("RCRM_TOKEN is required: set it in the environment, a .env file or RCRM_TOKEN_FILE")

const (
	DefaultPort    = 8000
	DefaultEnvFile = ".env"
)

// LogConfig selects the logger level, encoding and optional rotating file.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// TLSConfig enables HTTPS when both files are set.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Enabled reports whether a certificate pair is configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// Config is the resolved server configuration.
type Config struct {
	Port      int
	Token     string
	MCPToken  string
	BaseURLs  map[recruitcrm.Service]string
	Origin    string
	Timeout   time.Duration
	PublicURL string
	Log       LogConfig
	TLS       TLSConfig
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// Credentials returns the CRM credential context.
func (c Config) Credentials() recruitcrm.Credentials {
	return recruitcrm.Credentials{Token: c.Token}
}

// ClientOptions returns the CRM client options derived from the config.
func (c Config) ClientOptions() recruitcrm.Options {
	return recruitcrm.Options{BaseURLs: c.BaseURLs, Origin: c.Origin, Timeout: c.Timeout}
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"port":       "PORT",
	"token":      "RCRM_TOKEN",
	"token_file": "RCRM_TOKEN_FILE",
	"mcp_token":  "MCP_TOKEN",
	"origin":     "RCRM_ORIGIN",
	"timeout":    "RCRM_TIMEOUT",
	"debug":      "DEBUG",
	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",
	"log.file":   "LOG_FILE",
	"tls.cert":   "TLS_CERT_FILE",
	"tls.key":    "TLS_KEY_FILE",
	"public_url": "PUBLIC_URL",
	"env_file":   "ENV_FILE",
}

func init() {
	for _, svc := range recruitcrm.Services() {
		envBindings[baseURLKey(svc)] = "RCRM_" + strings.ToUpper(string(svc)) + "_BASE_URL"
	}
}

func baseURLKey(svc recruitcrm.Service) string { return "base_url." + string(svc) }

// New returns a viper instance with defaults and environment bindings in place.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("origin", recruitcrm.DefaultOrigin)
	v.SetDefault("timeout", recruitcrm.DefaultTimeout.String())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("env_file", DefaultEnvFile)
	for svc, u := range recruitcrm.DefaultBaseURLs() {
		v.SetDefault(baseURLKey(svc), u)
	}
}

// RegisterFlags declares the command-line flags and binds them into v.
func RegisterFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.String("config", "", "path to a YAML, TOML, JSON or .env config file")
	flags.Int("port", DefaultPort, "listen port")
	flags.String("origin", recruitcrm.DefaultOrigin, "Origin header sent to RecruitCRM")
	flags.String("timeout", recruitcrm.DefaultTimeout.String(), "outbound call timeout (duration or seconds)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log encoding (json or console)")
	flags.String("log-file", "", "write logs to a rotating file instead of stderr")
	flags.String("tls-cert", "", "TLS certificate file")
	flags.String("tls-key", "", "TLS key file")
	flags.String("public-url", "", "externally visible base URL used in SSE endpoint events")
	flags.String("env-file", DefaultEnvFile, "dotenv file read when present")

	for key, name := range map[string]string{
		"config":     "config",
		"port":       "port",
		"origin":     "origin",
		"timeout":    "timeout",
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.file":   "log-file",
		"tls.cert":   "tls-cert",
		"tls.key":    "tls-key",
		"public_url": "public-url",
		"env_file":   "env-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration. It fails with ErrMissingCredential when no token is set.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString("config"); path != "" {
		if err := readConfigFile(v, path); err != nil {
			return Config{}, err
		}
	}
	envFile := v.GetString("env_file")
	if err := readDotEnv(v, envFile); err != nil {
		// only the default file may be absent
		if !errors.Is(err, os.ErrNotExist) || envFile != DefaultEnvFile {
			return Config{}, err
		}
	}

	cfg := Config{
		Port:      v.GetInt("port"),
		Token:     strings.TrimSpace(v.GetString("token")),
		MCPToken:  strings.TrimSpace(v.GetString("mcp_token")),
		BaseURLs:  make(map[recruitcrm.Service]string),
		Origin:    v.GetString("origin"),
		PublicURL: strings.TrimRight(v.GetString("public_url"), "/"),
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
			File:   v.GetString("log.file"),
		},
		TLS: TLSConfig{CertFile: v.GetString("tls.cert"), KeyFile: v.GetString("tls.key")},
	}
	for _, svc := range recruitcrm.Services() {
		cfg.BaseURLs[svc] = v.GetString(baseURLKey(svc))
	}
	if v.GetBool("debug") {
		cfg.Log.Level = "debug"
	}

	timeout, err := parseTimeout(v.GetString("timeout"))
	if err != nil {
		return Config{}, err
	}
	cfg.Timeout = timeout

	if cfg.Token == "" {
		if path := v.GetString("token_file"); path != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("read token file: %w", err)
			}
			cfg.Token = strings.TrimSpace(string(raw))
		}
	}
	if cfg.Token == "" {
		return Config{}, ErrMissingCredential
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q: want json or console", c.Log.Format)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls.cert and tls.key must be set together")
	}
	return nil
}

// parseTimeout accepts a Go duration or a bare number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return recruitcrm.DefaultTimeout, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid timeout %q: must be positive", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", s)
	}
	return d, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if isDotEnv(path) {
		return readDotEnv(v, path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func isDotEnv(path string) bool {
	base := filepath.Base(path)
	return base == ".env" || filepath.Ext(base) == ".env"
}

// readDotEnv loads KEY=value pairs from path as defaults, so the config file, the
// environment and flags all win over it.
func readDotEnv(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	dotenv := viper.New()
	dotenv.SetConfigFile(path)
	dotenv.SetConfigType("env")
	if err := dotenv.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for key, env := range envBindings {
		if _, set := os.LookupEnv(env); set {
			continue
		}
		name := strings.ToLower(env)
		if dotenv.IsSet(name) {
			v.SetDefault(key, dotenv.GetString(name))
		}
	}
	return nil
}
