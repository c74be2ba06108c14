package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tailscale/hujson"
	"github.com/xxxsen/common/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port             int                   `json:"port"`
	SiteName         string                `json:"site_name"`
	JWTSecret        string                `json:"jwt_secret"`
	JWTTTLHours      int                   `json:"jwt_ttl_hours"`
	CookieName       string                `json:"cookie_name"`
	CookieSecure     bool                  `json:"cookie_secure"`
	Database         DatabaseConfig        `json:"database"`
	LogConfig        logger.LogConfig      `json:"log_config"`
	Types            map[string]TypeConfig `json:"types"`
	Users            []UserConfig          `json:"users"`
	Forms            FormConfig            `json:"forms"`
	LoginRateLimitMs int                   `json:"login_rate_limit_ms"`
	FileStore        FileStoreConfig       `json:"file_store"`
	CORSAllowlist    []string              `json:"cors_allowlist"`
	AssetSweep       AssetSweepConfig      `json:"asset_sweep"`
}

// AssetSweepConfig schedules removal of unreferenced uploads. An empty
// cron disables the job.
type AssetSweepConfig struct {
	Cron        string `json:"cron"`
	MinAgeHours int    `json:"min_age_hours"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// TypeConfig describes one document type as written in the config file.
type TypeConfig struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Fields      []FieldConfig `json:"fields"`
}

type FieldConfig struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Default     interface{}   `json:"default"`
	Render      RenderPolicy  `json:"render"`
	Weight      int           `json:"weight"`
	Form        *WidgetConfig `json:"form"`
}

type WidgetConfig struct {
	Widget   string            `json:"widget"`
	Required bool              `json:"required"`
	Choices  map[string]string `json:"choices"`
}

// RenderPolicy is either a renderer name or false, which hides the field
// from rendered output.
type RenderPolicy struct {
	Name       string
	Suppressed bool
}

func (r *RenderPolicy) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "null", "true", `""`:
		*r = RenderPolicy{}
		return nil
	case "false":
		*r = RenderPolicy{Suppressed: true}
		return nil
	}
	var name string
	if err := json.Unmarshal(trimmed, &name); err != nil {
		return fmt.Errorf("render must be a renderer name or false: %w", err)
	}
	*r = RenderPolicy{Name: name}
	return nil
}

func (r RenderPolicy) MarshalJSON() ([]byte, error) {
	if r.Suppressed {
		return []byte("false"), nil
	}
	if r.Name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.Name)
}

type UserConfig struct {
	Name         string   `json:"name"`
	PasswordHash string   `json:"password_hash"`
	Permissions  []string `json:"permissions"`
}

type FormConfig struct {
	CacheSize       int `json:"cache_size"`
	TokenTTLSeconds int `json:"token_ttl_seconds"`
}

// FileStoreConfig selects the asset store. An empty type disables uploads.
type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a JSON document that may carry comments and trailing commas.
func Parse(raw []byte) (*Config, error) {
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid config syntax: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "Home"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "mpage_session"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Forms.CacheSize <= 0 {
		cfg.Forms.CacheSize = 1024
	}
	if cfg.Forms.TokenTTLSeconds <= 0 {
		cfg.Forms.TokenTTLSeconds = 1800
	}
	if cfg.AssetSweep.MinAgeHours <= 0 {
		cfg.AssetSweep.MinAgeHours = 24
	}
	if cfg.LoginRateLimitMs < 0 {
		cfg.LoginRateLimitMs = 0
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be postgres or memory")
	}
	if len(cfg.Types) == 0 {
		return fmt.Errorf("at least one document type is required")
	}
	seen := make(map[string]struct{}, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Name == "" || u.PasswordHash == "" {
			return fmt.Errorf("users require name and password_hash")
		}
		if _, ok := seen[u.Name]; ok {
			return fmt.Errorf("duplicate user %q", u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return nil
}
