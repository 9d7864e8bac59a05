// Package config has the configuration for the app
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names
const (
	EnvDevelopment = "dev"
	EnvStaging     = "staging"
	EnvProduction  = "prod"
	EnvTest        = "test"
)

// Environment variable names read by Load
const (
	VarPort           = "PORT"
	VarAddress        = "ADDRESS"
	VarEnv            = "ENV"
	VarLogLevel       = "LOG_LEVEL"
	VarLogFormat      = "LOG_FORMAT"
	VarProjectID      = "GOOGLE_PROJECT_ID"
	VarCredentials    = "GOOGLE_APPLICATION_CREDENTIALS"
	VarPodName        = "POD_NAME"
	VarExportInterval = "EXPORT_INTERVAL"
	VarAdminEnabled   = "ADMIN_ENABLED"
	VarAdminPort      = "ADMIN_PORT"
	VarRateLimitRPS   = "RATE_LIMIT_RPS"
	VarRateLimitBurst = "RATE_LIMIT_BURST"
)

const (
	minExportInterval    = 10 * time.Second
	maxExportInterval    = time.Hour
	defaultExportSeconds = 60
)

// ErrMissingRequired is wrapped by Load when a required variable is unset
var ErrMissingRequired = errors.New("missing required environment variables")

// Config holds all application configuration
type Config struct {
	Port            string
	Address         string
	Env             string
	LogLevel        string
	LogFormat       string
	ProjectID       string
	CredentialsFile string
	ExportInterval  time.Duration
	AdminEnabled    bool
	AdminPort       string
	RateLimitRPS    float64 // 0 disables per-client rate limiting
	RateLimitBurst  int64
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	if err := ValidateAllEnvVars(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnvWithDefault(VarPort, "8080"),
		Address:         getEnvWithDefault(VarAddress, "0.0.0.0"),
		Env:             strings.ToLower(getEnvWithDefault(VarEnv, EnvDevelopment)),
		LogLevel:        strings.ToLower(getEnvWithDefault(VarLogLevel, "info")),
		LogFormat:       strings.ToLower(getEnvWithDefault(VarLogFormat, "text")),
		ProjectID:       os.Getenv(VarProjectID),
		CredentialsFile: os.Getenv(VarCredentials),
		AdminPort:       getEnvWithDefault(VarAdminPort, "9464"),
	}

	var err error
	if cfg.ExportInterval, err = getDurationEnvWithDefault(VarExportInterval, defaultExportSeconds*time.Second); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", VarExportInterval, err)
	}
	if cfg.AdminEnabled, err = getBoolEnvWithDefault(VarAdminEnabled, true); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", VarAdminEnabled, err)
	}
	if cfg.RateLimitRPS, err = getFloatEnvWithDefault(VarRateLimitRPS, 0); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", VarRateLimitRPS, err)
	}
	if cfg.RateLimitBurst, err = getInt64EnvWithDefault(VarRateLimitBurst, 1000); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", VarRateLimitBurst, err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// PodName returns the current pod name, read from the environment on every call
func PodName() string {
	return os.Getenv(VarPodName)
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateOneOf(cfg.Env, []string{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateOneOf(cfg.LogLevel, []string{"debug", "info", "warn", "error"}); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateOneOf(cfg.LogFormat, []string{"text", "json"}); err != nil {
		return fmt.Errorf("invalid LOG_FORMAT: %w", err)
	}

	if err := validateCredentialsFile(cfg.CredentialsFile); err != nil {
		return fmt.Errorf("invalid GOOGLE_APPLICATION_CREDENTIALS: %w", err)
	}

	if cfg.ExportInterval < minExportInterval || cfg.ExportInterval > maxExportInterval {
		return fmt.Errorf("invalid EXPORT_INTERVAL: must be between %s and %s, got %s",
			minExportInterval, maxExportInterval, cfg.ExportInterval)
	}

	if cfg.AdminEnabled {
		if err := validatePort(cfg.AdminPort); err != nil {
			return fmt.Errorf("invalid ADMIN_PORT: %w", err)
		}
		if cfg.AdminPort == cfg.Port {
			return fmt.Errorf("invalid ADMIN_PORT: must differ from PORT (%s)", cfg.Port)
		}
	}

	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("invalid RATE_LIMIT_RPS: must not be negative, got: %g", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_BURST: must be positive, got: %d", cfg.RateLimitBurst)
	}

	return nil
}

// validatePort validates a port value
func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("port %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Pods bind to all interfaces; public addresses are still refused
	if !ip.IsUnspecified() && !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

func validateOneOf(value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("must be one of: %v, got: %s", valid, value)
}

// validateCredentialsFile checks that the key file is a regular file this
// process can open
func validateCredentialsFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read credentials file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read credentials file: %w", err)
	}
	return f.Close()
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func getFloatEnvWithDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(value, 64)
}

func getBoolEnvWithDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(value)
}

// getDurationEnvWithDefault accepts a Go duration ("90s") or a plain number of seconds
func getDurationEnvWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		VarPort,
		VarAddress,
		VarEnv,
		VarLogLevel,
		VarLogFormat,
		VarProjectID,
		VarCredentials,
		VarPodName,
		VarExportInterval,
		VarAdminEnabled,
		VarAdminPort,
		VarRateLimitRPS,
		VarRateLimitBurst,
	}
}

// ValidateAllEnvVars checks if all required environment variables are set.
// The exporter cannot run without a project and a key file.
func ValidateAllEnvVars() error {
	requiredVars := []string{VarProjectID, VarCredentials}
	missingVars := []string{}

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("%w: %s (unable to proceed without a project ID and a keyfile)",
			ErrMissingRequired, strings.Join(missingVars, ", "))
	}

	return nil
}
