// Package config loads the layered configuration: a greport.yaml file
// overridden by GREPORT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/greport/greport/internal/metrics"
)

// EnvPrefix is the environment namespace; github.token becomes
// GREPORT_GITHUB_TOKEN.
const EnvPrefix = "GREPORT"

// GithubConfig is one credential plus its endpoints.
type GithubConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	WebURL  string `mapstructure:"web_url"`
}

// OrgConfig is a per-organization credential override.
type OrgConfig struct {
	Name    string `mapstructure:"name"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	WebURL  string `mapstructure:"web_url"`
}

// SlaConfig carries the default thresholds plus per-priority-label
// overrides under sla.priority.<label>.
type SlaConfig struct {
	ResponseTimeHours   float64                  `mapstructure:"response_time_hours"`
	ResolutionTimeHours float64                  `mapstructure:"resolution_time_hours"`
	Priority            map[string]SlaThresholds `mapstructure:"priority"`
}

// SlaThresholds is one response/resolution pair.
type SlaThresholds struct {
	ResponseTimeHours   float64 `mapstructure:"response_time_hours"`
	ResolutionTimeHours float64 `mapstructure:"resolution_time_hours"`
}

// DatabaseConfig locates the warehouse.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// SyncConfig tunes the coordinator.
type SyncConfig struct {
	OverlapHours int `mapstructure:"overlap_hours"`
	StaleDays    int `mapstructure:"stale_days"`
}

// DefaultsConfig carries CLI fallbacks.
type DefaultsConfig struct {
	Repo   string `mapstructure:"repo"`
	Format string `mapstructure:"format"`
}

// Config is the full application configuration.
type Config struct {
	Github        GithubConfig   `mapstructure:"github"`
	Organizations []OrgConfig    `mapstructure:"organizations"`
	Defaults      DefaultsConfig `mapstructure:"defaults"`
	Sla           SlaConfig      `mapstructure:"sla"`
	Database      DatabaseConfig `mapstructure:"database"`
	Server        ServerConfig   `mapstructure:"server"`
	Sync          SyncConfig     `mapstructure:"sync"`
}

// Addr is the listener address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// SlaMetricsConfig converts to the derivation layer's SLA config.
func (c *Config) SlaMetricsConfig() metrics.SlaConfig {
	cfg := metrics.SlaConfig{
		SlaThresholds: metrics.SlaThresholds{
			ResponseHours:   c.Sla.ResponseTimeHours,
			ResolutionHours: c.Sla.ResolutionTimeHours,
		},
	}
	if len(c.Sla.Priority) > 0 {
		cfg.Priorities = make(map[string]metrics.SlaThresholds, len(c.Sla.Priority))
		for label, t := range c.Sla.Priority {
			response := t.ResponseTimeHours
			if response == 0 {
				response = cfg.ResponseHours
			}
			resolution := t.ResolutionTimeHours
			if resolution == 0 {
				resolution = cfg.ResolutionHours
			}
			cfg.Priorities[label] = metrics.SlaThresholds{
				ResponseHours:   response,
				ResolutionHours: resolution,
			}
		}
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.web_url", "https://github.com")
	v.SetDefault("defaults.format", "table")
	v.SetDefault("sla.response_time_hours", metrics.DefaultResponseHours)
	v.SetDefault("sla.resolution_time_hours", metrics.DefaultResolutionHours)
	v.SetDefault("database.url", "greport.db")
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("sync.overlap_hours", 1)
	v.SetDefault("sync.stale_days", metrics.DefaultStaleDays)
}

// Load reads greport.yaml plus the environment. path overrides the
// search locations when non-empty; a missing file is not an error, the
// defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so keys without
	// defaults are bound explicitly for the environment layer.
	for _, key := range []string{
		"github.token", "defaults.repo", "server.bind_address",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("greport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/greport")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	seen := map[string]bool{}
	for _, org := range c.Organizations {
		if org.Name == "" {
			return fmt.Errorf("organizations entries require a name")
		}
		key := strings.ToLower(org.Name)
		if seen[key] {
			return fmt.Errorf("duplicate organization %q", org.Name)
		}
		seen[key] = true
	}
	if c.Sync.OverlapHours < 0 {
		return fmt.Errorf("sync.overlap_hours must not be negative")
	}
	if c.Sync.StaleDays < 0 {
		return fmt.Errorf("sync.stale_days must not be negative")
	}
	return nil
}
