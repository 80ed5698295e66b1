// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sigil-dev/claimsgate/internal/identity"
	"github.com/sigil-dev/claimsgate/internal/scanner"
	"github.com/sigil-dev/claimsgate/internal/secrets"
	"github.com/sigil-dev/claimsgate/internal/store"
	"github.com/sigil-dev/claimsgate/internal/summary"
	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Config is the top-level claimsgate configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Review     ReviewConfig              `mapstructure:"review"`
	Risk       RiskConfig                `mapstructure:"risk"`
	Approvals  ApprovalsConfig           `mapstructure:"approvals"`
	Summary    SummaryConfig             `mapstructure:"summary"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Auth       AuthConfig                `mapstructure:"auth"`
	Scanner    ScannerConfig             `mapstructure:"scanner"`
	Tracing    TracingConfig             `mapstructure:"tracing"`
	Logging    LoggingConfig             `mapstructure:"logging"`

	// Path is the config file that was read, empty for defaults only.
	Path string `mapstructure:"-"`
}

type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimitRPS is the sustained per-IP request rate; 0 disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// ReviewConfig bounds each tool call of the automated review.
type ReviewConfig struct {
	MaxToolRetries int           `mapstructure:"max_tool_retries"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
}

type RiskConfig struct {
	MediumThreshold float64 `mapstructure:"medium_threshold"`
	HighThreshold   float64 `mapstructure:"high_threshold"`
}

// ApprovalsConfig controls pending checkpoints. A zero CheckpointTTL never
// marks a checkpoint overdue.
type ApprovalsConfig struct {
	CheckpointTTL time.Duration `mapstructure:"checkpoint_ttl"`
}

type SummaryConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// ProviderConfig holds credentials and endpoint for a summary provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type AuthConfig struct {
	Tokens []identity.TokenConfig `mapstructure:"tokens"`
}

// ScannerConfig controls screening of claim text. InputMode applies to
// descriptions and messages from users; RedactUpstream strips secrets and
// card numbers before claim text reaches a hosted summary provider.
type ScannerConfig struct {
	InputMode      string `mapstructure:"input_mode"`
	RedactUpstream bool   `mapstructure:"redact_upstream"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Output  string `mapstructure:"output"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("networking.rate_limit_rps", 10.0)
	v.SetDefault("networking.rate_limit_burst", 30)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("review.max_tool_retries", 2)
	v.SetDefault("review.tool_timeout", "30s")
	v.SetDefault("risk.medium_threshold", 50_000.0)
	v.SetDefault("risk.high_threshold", 100_000.0)
	v.SetDefault("approvals.checkpoint_ttl", "72h")
	v.SetDefault("summary.provider", summary.ProviderTemplate)
	v.SetDefault("scanner.input_mode", string(scanner.ModeFlag))
	v.SetDefault("scanner.redact_upstream", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.output", "stdout")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv maps CLAIMSGATE_NETWORKING_LISTEN and friends onto keys.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("CLAIMSGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Discover points v at claimsgate.yaml in the standard locations.
func Discover(v *viper.Viper) {
	v.SetConfigName("claimsgate")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/claimsgate")
	v.AddConfigPath("/etc/claimsgate")
}

// Load reads path, or discovers a config file when path is empty, applies
// environment overrides and resolves keyring references through sec when
// sec is non-nil.
func Load(path string, sec secrets.Store) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		Discover(v)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, cgerr.Wrapf(err, cgerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}
	return FromViper(v, sec)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper, sec secrets.Store) (*Config, error) {
	if sec != nil {
		if err := secrets.ResolveConfig(v, sec); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cgerr.Wrap(err, cgerr.CodeConfigParseInvalidFormat, "decoding config")
	}
	cfg.Path = v.ConfigFileUsed()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cgerr.Wrap(errors.Join(errs...), cgerr.CodeConfigValidateInvalidValue, "validating config")
	}
	WarnInsecurePermissions(cfg.Path)
	return &cfg, nil
}

// Validate collects every problem rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateReview()...)
	errs = append(errs, c.validateSummary()...)
	errs = append(errs, c.validateAuth()...)
	if _, err := scanner.ParseMode(c.Scanner.InputMode); err != nil {
		errs = append(errs, invalid("scanner.input_mode must be one of [block, flag, redact], got %q", c.Scanner.InputMode))
	}
	errs = append(errs, c.validateLogging()...)
	return errs
}

// StoreConfig converts the storage section for store.Open.
func (c *Config) StoreConfig() *store.StorageConfig {
	return &store.StorageConfig{Backend: c.Storage.Backend, DataDir: c.Storage.DataDir}
}

// SummaryWriterConfig returns the summary writer settings, with the selected
// provider's credentials filled in.
func (c *Config) SummaryWriterConfig() summary.Config {
	p := c.Providers[c.Summary.Provider]
	return summary.Config{
		Provider: c.Summary.Provider,
		Model:    c.Summary.Model,
		APIKey:   p.APIKey,
		BaseURL:  p.Endpoint,
	}
}

// InputMode is the parsed scanner.input_mode. Call it on validated configs.
func (c *Config) InputMode() scanner.Mode {
	m, _ := scanner.ParseMode(c.Scanner.InputMode)
	return m
}

func invalid(format string, args ...any) error {
	return cgerr.Errorf(cgerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateNetworking() []error {
	var errs []error
	if c.Networking.Listen == "" {
		return append(errs, invalid("networking.listen must not be empty"))
	}
	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		return append(errs, invalid("networking.listen must be host:port, got %q", c.Networking.Listen))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, invalid("networking.listen port must be between 1 and 65535, got %q", portStr))
	}
	if c.Networking.RateLimitRPS < 0 {
		errs = append(errs, invalid("networking.rate_limit_rps must not be negative, got %g", c.Networking.RateLimitRPS))
	}
	if c.Networking.RateLimitRPS > 0 && c.Networking.RateLimitBurst <= 0 {
		errs = append(errs, invalid("networking.rate_limit_burst must be positive when rate_limit_rps is set"))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error
	if c.Storage.Backend != "sqlite" {
		errs = append(errs, invalid("storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, invalid("storage.data_dir must not be empty"))
	}
	return errs
}

func (c *Config) validateReview() []error {
	var errs []error
	if c.Review.MaxToolRetries < 0 {
		errs = append(errs, invalid("review.max_tool_retries must not be negative, got %d", c.Review.MaxToolRetries))
	}
	if c.Review.ToolTimeout < 0 {
		errs = append(errs, invalid("review.tool_timeout must not be negative, got %s", c.Review.ToolTimeout))
	}
	if c.Approvals.CheckpointTTL < 0 {
		errs = append(errs, invalid("approvals.checkpoint_ttl must not be negative, got %s", c.Approvals.CheckpointTTL))
	}
	if c.Risk.MediumThreshold <= 0 || c.Risk.HighThreshold < c.Risk.MediumThreshold {
		errs = append(errs, invalid("risk thresholds must satisfy 0 < medium_threshold <= high_threshold, got %g and %g",
			c.Risk.MediumThreshold, c.Risk.HighThreshold))
	}
	return errs
}

func (c *Config) validateSummary() []error {
	var errs []error
	providers := []string{summary.ProviderTemplate, summary.ProviderGoogle, summary.ProviderAnthropic, summary.ProviderOpenAI}
	switch {
	case !slices.Contains(providers, c.Summary.Provider):
		errs = append(errs, invalid("summary.provider must be one of [%s], got %q",
			strings.Join(providers, ", "), c.Summary.Provider))
	case c.Summary.Provider != summary.ProviderTemplate && c.Providers[c.Summary.Provider].APIKey == "":
		errs = append(errs, invalid("summary.provider %q needs providers.%s.api_key",
			c.Summary.Provider, c.Summary.Provider))
	}
	return errs
}

func (c *Config) validateAuth() []error {
	var errs []error
	seen := map[string]bool{}
	for i, t := range c.Auth.Tokens {
		if t.Token == "" {
			errs = append(errs, invalid("auth.tokens[%d].token must not be empty", i))
		}
		if t.UserID == "" {
			errs = append(errs, invalid("auth.tokens[%d].user_id must not be empty", i))
		}
		role := store.Role(strings.ToUpper(t.Role))
		if !role.Valid() || role == store.RoleAgent {
			errs = append(errs, invalid("auth.tokens[%d].role must be one of [USER, APPROVER, ADMIN], got %q", i, t.Role))
		}
		if t.Token != "" && seen[t.Token] {
			errs = append(errs, invalid("auth.tokens[%d] reuses a token of another entry", i))
		}
		seen[t.Token] = true
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json", "auto"}, c.Logging.Format) {
		errs = append(errs, invalid("logging.format must be one of [text, json, auto], got %q", c.Logging.Format))
	}
	return errs
}
