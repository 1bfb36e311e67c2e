package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Warehouse DB holds de-identified patient/encounter data and the
	// panel assignment output.
	WarehouseDBURL string `mapstructure:"PRW_DB_URL"`
	// Identity DB is the protected store holding the source-id to
	// pseudonymous-id mapping. Kept separate from the warehouse so the
	// mapping never travels with de-identified data.
	IdentityDBURL string `mapstructure:"PRW_ID_DB_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`

	// Secret salt mixed into the pseudonymous id hash.
	IDSalt            string `mapstructure:"PRW_ID_SALT"`
	MaxRehashAttempts int    `mapstructure:"MAX_REHASH_ATTEMPTS"`

	RulesFile    string `mapstructure:"RULES_FILE"`
	PanelWorkers int    `mapstructure:"PANEL_WORKERS"`

	OpsJWTSecret   string `mapstructure:"OPS_JWT_SECRET"`
	OpsJWTIssuer   string `mapstructure:"OPS_JWT_ISSUER"`
	OpsJWTAudience string `mapstructure:"OPS_JWT_AUDIENCE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MAX_REHASH_ATTEMPTS", 16)
	v.SetDefault("RULES_FILE", "rules.yaml")
	v.SetDefault("PANEL_WORKERS", 8)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("PRW_DB_URL")
	v.BindEnv("PRW_ID_DB_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("PRW_ID_SALT")
	v.BindEnv("MAX_REHASH_ATTEMPTS")
	v.BindEnv("RULES_FILE")
	v.BindEnv("PANEL_WORKERS")
	v.BindEnv("OPS_JWT_SECRET")
	v.BindEnv("OPS_JWT_ISSUER")
	v.BindEnv("OPS_JWT_AUDIENCE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.WarehouseDBURL == "" {
		return nil, fmt.Errorf("PRW_DB_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ValidateOps checks the settings the ops surface depends on. Outside
// development the API refuses to start without a JWT secret, so it can
// never serve behind an empty HMAC key.
func (c *Config) ValidateOps() error {
	if c.PanelWorkers < 1 {
		return fmt.Errorf("PANEL_WORKERS must be at least 1, got %d", c.PanelWorkers)
	}
	if !c.IsDev() && c.OpsJWTSecret == "" {
		return fmt.Errorf("OPS_JWT_SECRET is required when ENV is not development")
	}
	return nil
}

// Validate checks that the full configuration is safe to run. Identity
// resolution needs the salt and the identity store DSN on top of the ops
// settings.
func (c *Config) Validate() error {
	if c.IDSalt == "" {
		return fmt.Errorf("PRW_ID_SALT is required")
	}
	if c.IdentityDBURL == "" {
		return fmt.Errorf("PRW_ID_DB_URL is required")
	}
	if c.MaxRehashAttempts < 1 {
		return fmt.Errorf("MAX_REHASH_ATTEMPTS must be at least 1, got %d", c.MaxRehashAttempts)
	}
	return c.ValidateOps()
}
