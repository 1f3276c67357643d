package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DraftBackendSQLite = "sqlite"
	DraftBackendFile   = "file"

	TransportSimulated = "simulated"
	TransportLark      = "lark"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Drafts     DraftsConfig     `mapstructure:"drafts"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Uploads    UploadsConfig    `mapstructure:"uploads"`
	Roster     RosterConfig     `mapstructure:"roster"`
	Receipts   ReceiptsConfig   `mapstructure:"receipts"`
	Lark       LarkConfig       `mapstructure:"lark"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DraftsConfig selects where drafts live and how often sessions are flushed
type DraftsConfig struct {
	Backend          string        `mapstructure:"backend"`
	Dir              string        `mapstructure:"dir"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
}

// SubmissionConfig selects the delivery transport
type SubmissionConfig struct {
	Transport      string        `mapstructure:"transport"`
	Timeout        time.Duration `mapstructure:"timeout"`
	SimulatedDelay time.Duration `mapstructure:"simulated_delay"`
	FailureRate    float64       `mapstructure:"failure_rate"`
}

// UploadsConfig holds the document upload policy
type UploadsConfig struct {
	MaxFiles     int      `mapstructure:"max_files"`
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	MaxTotalSize int64    `mapstructure:"max_total_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// RosterConfig points at the manager roster. Empty uses the built-in roster.
type RosterConfig struct {
	Path string `mapstructure:"path"`
}

// ReceiptsConfig holds spreadsheet receipt output settings
type ReceiptsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LarkConfig holds Lark approval API configuration
type LarkConfig struct {
	AppID           string            `mapstructure:"app_id"`
	AppSecret       string            `mapstructure:"app_secret"`
	ApprovalCodes   map[string]string `mapstructure:"approval_codes"`
	FormWidgetID    string            `mapstructure:"form_widget_id"`
	SubmitterOpenID string            `mapstructure:"submitter_open_id"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath (optional), then .env, then the environment.
// Environment variables use the WIZARD_ prefix, e.g. WIZARD_SERVER_PORT.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("WIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000"})

	// Database defaults
	v.SetDefault("database.path", "data/wizard.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Draft defaults
	v.SetDefault("drafts.backend", DraftBackendSQLite)
	v.SetDefault("drafts.dir", "data/drafts")
	v.SetDefault("drafts.autosave_interval", 30*time.Second)
	v.SetDefault("drafts.idle_timeout", 2*time.Hour)

	// Submission defaults
	v.SetDefault("submission.transport", TransportSimulated)
	v.SetDefault("submission.timeout", 15*time.Second)
	v.SetDefault("submission.simulated_delay", 2*time.Second)
	v.SetDefault("submission.failure_rate", 0.0)

	// Upload defaults
	v.SetDefault("uploads.max_files", 5)
	v.SetDefault("uploads.max_file_size", 10<<20)
	v.SetDefault("uploads.max_total_size", 50<<20)

	v.SetDefault("receipts.enabled", true)
	v.SetDefault("receipts.dir", "data/receipts")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed credential variables
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "WIZARD_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "WIZARD_LARK_APP_SECRET", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.submitter_open_id", "WIZARD_LARK_SUBMITTER_OPEN_ID", "LARK_SUBMITTER_OPEN_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Drafts.Backend {
	case DraftBackendSQLite:
	case DraftBackendFile:
		if c.Drafts.Dir == "" {
			return fmt.Errorf("drafts.dir is required for the file backend")
		}
	default:
		return fmt.Errorf("drafts.backend must be %q or %q, got %q", DraftBackendSQLite, DraftBackendFile, c.Drafts.Backend)
	}
	if c.Drafts.AutosaveInterval <= 0 {
		return fmt.Errorf("drafts.autosave_interval must be positive")
	}

	if c.Submission.Timeout <= 0 {
		return fmt.Errorf("submission.timeout must be positive")
	}
	switch c.Submission.Transport {
	case TransportSimulated:
		if c.Submission.FailureRate < 0 || c.Submission.FailureRate > 1 {
			return fmt.Errorf("submission.failure_rate must be between 0 and 1")
		}
	case TransportLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
		if len(c.Lark.ApprovalCodes) == 0 {
			return fmt.Errorf("lark.approval_codes needs at least one flow")
		}
	default:
		return fmt.Errorf("submission.transport must be %q or %q, got %q", TransportSimulated, TransportLark, c.Submission.Transport)
	}

	if c.Uploads.MaxFiles <= 0 || c.Uploads.MaxFileSize <= 0 || c.Uploads.MaxTotalSize <= 0 {
		return fmt.Errorf("uploads limits must be positive")
	}

	if c.Receipts.Enabled && c.Receipts.Dir == "" {
		return fmt.Errorf("receipts.dir is required when receipts are enabled")
	}

	return nil
}
