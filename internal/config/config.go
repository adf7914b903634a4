package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	ActionsPort       string        `mapstructure:"ACTIONS_PORT"`
	Env               string        `mapstructure:"ENV"`
	RasaURL           string        `mapstructure:"RASA_URL"`
	RelayTimeout      time.Duration `mapstructure:"RELAY_TIMEOUT"`
	DataDir           string        `mapstructure:"DATA_DIR"`
	ModelPath         string        `mapstructure:"MODEL_PATH"`
	SymptomsPath      string        `mapstructure:"SYMPTOMS_PATH"`
	MedicationsPath   string        `mapstructure:"MEDICATIONS_PATH"`
	LexiconPath       string        `mapstructure:"LEXICON_PATH"`
	APIGatewayURL     string        `mapstructure:"API_GATEWAY_URL"`
	PatientServiceURL string        `mapstructure:"PATIENT_SERVICE_URL"`
	SiblingTimeout    time.Duration `mapstructure:"SIBLING_TIMEOUT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
}

var envKeys = []string{
	"PORT",
	"ACTIONS_PORT",
	"ENV",
	"RASA_URL",
	"RELAY_TIMEOUT",
	"DATA_DIR",
	"MODEL_PATH",
	"SYMPTOMS_PATH",
	"MEDICATIONS_PATH",
	"LEXICON_PATH",
	"API_GATEWAY_URL",
	"PATIENT_SERVICE_URL",
	"SIBLING_TIMEOUT",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"CORS_ORIGINS",
	"AUTH_SIGNING_KEY",
	"AUTH_ISSUER",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ACTIONS_PORT", "5055")
	v.SetDefault("ENV", "development")
	v.SetDefault("RASA_URL", "http://chatbot_rasa:5005")
	v.SetDefault("RELAY_TIMEOUT", "5s")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("API_GATEWAY_URL", "http://api_gateway:8080")
	v.SetDefault("PATIENT_SERVICE_URL", "http://patient_service:8000/api/")
	v.SetDefault("SIBLING_TIMEOUT", "5s")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	cfg.applyDataDir()

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		log.Println("WARNING: development mode without AUTH_SIGNING_KEY, doctor endpoints accept any caller as admin")
	}

	return cfg, nil
}

// applyDataDir fills reference-data paths that were not set explicitly.
func (c *Config) applyDataDir() {
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(c.DataDir, "model.json")
	}
	if c.SymptomsPath == "" {
		c.SymptomsPath = filepath.Join(c.DataDir, "symptoms.json")
	}
	if c.MedicationsPath == "" {
		c.MedicationsPath = filepath.Join(c.DataDir, "medications.json")
	}
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasDatabase reports whether chat transcripts should be persisted.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is required so doctor endpoints never run unauthenticated.
func (c *Config) Validate() error {
	if c.RasaURL == "" {
		return fmt.Errorf("RASA_URL is required")
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("RELAY_TIMEOUT must be positive, got %s", c.RelayTimeout)
	}
	if c.SiblingTimeout <= 0 {
		return fmt.Errorf("SIBLING_TIMEOUT must be positive, got %s", c.SiblingTimeout)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
