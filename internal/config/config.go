package config

import (
	"os"
	"strconv"
	"time"

	"goparam/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Paths    PathConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// AnalysisConfig holds the engine defaults
type AnalysisConfig struct {
	Target          string
	ModelKind       string
	Seed            int64
	Candidates      int
	Treatment       string
	Simulations     int
	PassRatio       float64
	PlaceboRatio    float64
	SubsetFraction  float64
	Counterfactuals int
	TopDependence   int
	Timeout         time.Duration
}

// PathConfig holds file system paths
type PathConfig struct {
	ReportsDir string
	OutputDir  string
	DataFile   string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DatabaseConfig holds database connection settings. The run repository is
// optional; an empty URL disables it.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

// Enabled reports whether a database was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Analysis: *loadAnalysisConfig(),
		Paths:    *loadPathConfig(),
		Server:   *loadServerConfig(),
		Database: *loadDatabaseConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Target:          "llm_f1",
			ModelKind:       "rf",
			Seed:            42,
			Candidates:      5,
			Simulations:     100,
			PassRatio:       0.5,
			PlaceboRatio:    0.5,
			SubsetFraction:  0.8,
			Counterfactuals: 5,
			TopDependence:   3,
			Timeout:         5 * time.Minute,
		},
		Paths: PathConfig{
			ReportsDir: "../reports",
			OutputDir:  "output",
		},
		Server: ServerConfig{
			Port:    "8080",
			GinMode: "release",
		},
		Database: DatabaseConfig{MaxOpenConns: 5},
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	d := Default().Analysis
	return &AnalysisConfig{
		Target:          getEnvOrDefault("GOPARAM_TARGET", d.Target),
		ModelKind:       getEnvOrDefault("GOPARAM_MODEL", d.ModelKind),
		Seed:            int64(getEnvIntOrDefault("GOPARAM_SEED", int(d.Seed))),
		Candidates:      getEnvIntOrDefault("GOPARAM_CANDIDATES", d.Candidates),
		Treatment:       getEnvOrDefault("GOPARAM_TREATMENT", ""),
		Simulations:     getEnvIntOrDefault("GOPARAM_REFUTE_SIMULATIONS", d.Simulations),
		PassRatio:       getEnvFloatOrDefault("GOPARAM_REFUTE_PASS_RATIO", d.PassRatio),
		PlaceboRatio:    getEnvFloatOrDefault("GOPARAM_PLACEBO_PASS_RATIO", d.PlaceboRatio),
		SubsetFraction:  getEnvFloatOrDefault("GOPARAM_SUBSET_FRACTION", d.SubsetFraction),
		Counterfactuals: getEnvIntOrDefault("GOPARAM_COUNTERFACTUALS", d.Counterfactuals),
		TopDependence:   getEnvIntOrDefault("GOPARAM_TOP_DEPENDENCE", d.TopDependence),
		Timeout:         getEnvDurationOrDefault("GOPARAM_TIMEOUT", d.Timeout),
	}
}

func loadPathConfig() *PathConfig {
	d := Default().Paths
	return &PathConfig{
		ReportsDir: getEnvOrDefault("REPORTS_DIR", d.ReportsDir),
		OutputDir:  getEnvOrDefault("OUTPUT_DIR", d.OutputDir),
		DataFile:   getEnvOrDefault("DATA_FILE", ""),
	}
}

func loadServerConfig() *ServerConfig {
	d := Default().Server
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", d.Port),
		GinMode: getEnvOrDefault("GIN_MODE", d.GinMode),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", Default().Database.MaxOpenConns),
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Target == "" {
		return errors.ConfigInvalid("target metric is required")
	}
	if a.Candidates <= 0 {
		return errors.ConfigInvalid("candidate count must be positive")
	}
	if a.Simulations <= 0 {
		return errors.ConfigInvalid("refutation simulations must be positive")
	}
	if a.PassRatio <= 0 || a.PlaceboRatio <= 0 {
		return errors.ConfigInvalid("refutation pass ratios must be positive")
	}
	if a.SubsetFraction <= 0 || a.SubsetFraction > 1 {
		return errors.ConfigInvalid("subset fraction must be in (0, 1]")
	}
	if a.Counterfactuals < 0 {
		return errors.ConfigInvalid("counterfactual count cannot be negative")
	}
	if c.Paths.OutputDir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
