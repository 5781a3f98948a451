package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CipherConfig selects the AES-GCM engine
type CipherConfig struct {
	Engine string `mapstructure:"engine" validate:"oneof=stdlib tink"`
}

// BackendConfig holds the hosted database connection used for vault records
type BackendConfig struct {
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	AnonKey        string `mapstructure:"anon_key" validate:"required_with=URL"`
	Table          string `mapstructure:"table" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"min=1,max=300"`
}

// KeyStoreConfig holds where vault keys are kept, apart from the records
type KeyStoreConfig struct {
	Type           string `mapstructure:"type" validate:"oneof=memory s3"`
	Bucket         string `mapstructure:"bucket" validate:"required_if=Type s3"`
	Prefix         string `mapstructure:"prefix"`
	Endpoint       string `mapstructure:"endpoint" validate:"omitempty,url"`
	Region         string `mapstructure:"region"`
	AccessKeyID    string `mapstructure:"access_key_id"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// ThemeConfig holds the persisted UI preference settings
type ThemeConfig struct {
	File             string `mapstructure:"file"`
	SystemPreference string `mapstructure:"system_preference" validate:"omitempty,oneof=light dark"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address" validate:"required_if=Enabled true"`
	MetricsPath string `mapstructure:"metrics_path" validate:"startswith=/"`
}

// Config holds the application configuration
type Config struct {
	BindAddress       string `mapstructure:"bind_address" validate:"required,hostname_port"`
	LogLevel          string `mapstructure:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat         string `mapstructure:"log_format" validate:"oneof=text json"`
	LogHealthRequests bool   `mapstructure:"log_health_requests"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout" validate:"min=1"` // seconds

	Cipher     CipherConfig     `mapstructure:"cipher"`
	Backend    BackendConfig    `mapstructure:"backend"`
	KeyStore   KeyStoreConfig   `mapstructure:"keystore"`
	Theme      ThemeConfig      `mapstructure:"theme"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// InitConfig initializes the configuration system
func InitConfig(cfgFile string) {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".secret-cipher")
	}

	viper.SetEnvPrefix("SECRETCIPHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindPublicEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindPublicEnv keeps the web app's PUBLIC_* variable names working.
func bindPublicEnv() {
	_ = viper.BindEnv("backend.url", "SECRETCIPHER_BACKEND_URL", "PUBLIC_SUPABASE_URL")
	_ = viper.BindEnv("backend.anon_key", "SECRETCIPHER_BACKEND_ANON_KEY", "PUBLIC_SUPABASE_ANON_KEY")
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("bind_address", "127.0.0.1:8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("log_health_requests", false)
	viper.SetDefault("shutdown_timeout", 15)

	viper.SetDefault("cipher.engine", "stdlib")

	viper.SetDefault("backend.url", "")
	viper.SetDefault("backend.anon_key", "")
	viper.SetDefault("backend.table", "secrets")
	viper.SetDefault("backend.timeout_seconds", 10)

	viper.SetDefault("keystore.type", "memory")
	viper.SetDefault("keystore.prefix", "keys/")
	viper.SetDefault("keystore.region", "us-east-1")
	viper.SetDefault("keystore.force_path_style", true)

	viper.SetDefault("theme.file", "")
	viper.SetDefault("theme.system_preference", "")

	viper.SetDefault("monitoring.enabled", false)
	viper.SetDefault("monitoring.bind_address", ":9090")
	viper.SetDefault("monitoring.metrics_path", "/metrics")
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks struct tags and returns the first failing field by its
// configuration key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return fmt.Errorf("%s: failed %q check (value %q)", configKey(fe.Namespace()), fe.Tag(), redact(fe))
}

// configKey maps "Config.KeyStore.Bucket" to "keystore.bucket".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if f, ok := fieldKeys[p]; ok {
			parts[i] = f
		} else {
			parts[i] = strings.ToLower(p)
		}
	}
	return strings.Join(parts, ".")
}

var fieldKeys = map[string]string{
	"BindAddress":       "bind_address",
	"LogLevel":          "log_level",
	"LogFormat":         "log_format",
	"LogHealthRequests": "log_health_requests",
	"ShutdownTimeout":   "shutdown_timeout",
	"KeyStore":          "keystore",
	"URL":               "url",
	"AnonKey":           "anon_key",
	"TimeoutSeconds":    "timeout_seconds",
	"AccessKeyID":       "access_key_id",
	"SecretKey":         "secret_key",
	"ForcePathStyle":    "force_path_style",
	"SystemPreference":  "system_preference",
	"MetricsPath":       "metrics_path",
}

func redact(fe validator.FieldError) string {
	switch fe.Field() {
	case "AnonKey", "SecretKey":
		return "<redacted>"
	}
	return fmt.Sprintf("%v", fe.Value())
}

// VaultEnabled reports whether a record backend is configured.
func (cfg *Config) VaultEnabled() bool {
	return cfg.Backend.URL != ""
}

// ThemeFile returns the theme preference path, defaulting to the user config dir.
func (cfg *Config) ThemeFile() (string, error) {
	if cfg.Theme.File != "" {
		return cfg.Theme.File, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "secret-cipher", "theme.yaml"), nil
}
