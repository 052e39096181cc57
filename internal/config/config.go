package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/amaumene/traktsync/internal/models"
)

// Config holds all application configuration
type Config struct {
	// Trakt
	TraktClientID     string
	TraktClientSecret string
	TraktAPIURL       string

	// Import
	ImportSchedule    string // cron expression for the scheduled import
	ImportOnStart     bool
	ImportConcurrency int // Accounts imported in parallel (default: 1)

	// Export batching
	BatchQuietPeriod time.Duration // Debounce window before pending batches are flushed (default: 5s)
	BatchMaxSize     int           // Bucket size that triggers an immediate flush (default: 100)
	PlaybackCacheTTL time.Duration // How long a playback snapshot serves point checks (default: 10s)

	// Server
	ServerPort string

	// NATS event source (disabled when empty)
	NATSURL     string
	NATSSubject string

	// Paths
	DatabaseFile string // $CONFIG_DIR/traktsync.db
	AccountsFile string // $CONFIG_DIR/accounts.yaml

	// Logging
	LogLevel string
	LogFile  string

	// Linked accounts, read from AccountsFile
	Accounts []models.LinkedAccount
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Setup viper FIRST to load .env file
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("TRAKT_API_URL", "https://api.trakt.tv")
	viper.SetDefault("IMPORT_SCHEDULE", "0 */6 * * *")
	viper.SetDefault("IMPORT_ON_START", false)
	viper.SetDefault("IMPORT_CONCURRENCY", 1)
	viper.SetDefault("BATCH_QUIET_PERIOD_MS", 5000)
	viper.SetDefault("BATCH_MAX_SIZE", 100)
	viper.SetDefault("PLAYBACK_CACHE_TTL_SECONDS", 10)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("NATS_SUBJECT", "traktsync.playstate")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir, err := resolveConfigDir(viper.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, err
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// Trakt
		TraktClientID:     viper.GetString("TRAKT_CLIENT_ID"),
		TraktClientSecret: viper.GetString("TRAKT_CLIENT_SECRET"),
		TraktAPIURL:       viper.GetString("TRAKT_API_URL"),

		// Import
		ImportSchedule:    viper.GetString("IMPORT_SCHEDULE"),
		ImportOnStart:     viper.GetBool("IMPORT_ON_START"),
		ImportConcurrency: viper.GetInt("IMPORT_CONCURRENCY"),

		// Export batching
		BatchQuietPeriod: time.Duration(viper.GetInt("BATCH_QUIET_PERIOD_MS")) * time.Millisecond,
		BatchMaxSize:     viper.GetInt("BATCH_MAX_SIZE"),
		PlaybackCacheTTL: time.Duration(viper.GetInt("PLAYBACK_CACHE_TTL_SECONDS")) * time.Second,

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// NATS
		NATSURL:     viper.GetString("NATS_URL"),
		NATSSubject: viper.GetString("NATS_SUBJECT"),

		// Paths
		DatabaseFile: filepath.Join(configDir, "traktsync.db"),
		AccountsFile: filepath.Join(configDir, "accounts.yaml"),

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
		LogFile:  viper.GetString("LOG_FILE"),
	}

	// Validate required fields
	if config.TraktClientID == "" {
		return nil, fmt.Errorf("TRAKT_CLIENT_ID is required")
	}
	if config.TraktClientSecret == "" {
		return nil, fmt.Errorf("TRAKT_CLIENT_SECRET is required")
	}
	if config.BatchQuietPeriod <= 0 {
		return nil, fmt.Errorf("BATCH_QUIET_PERIOD_MS must be positive")
	}
	if config.BatchMaxSize <= 0 {
		return nil, fmt.Errorf("BATCH_MAX_SIZE must be positive")
	}
	if config.ImportConcurrency < 1 {
		config.ImportConcurrency = 1
	}

	accounts, err := LoadAccounts(config.AccountsFile)
	if err != nil {
		return nil, err
	}
	config.Accounts = accounts

	return config, nil
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "traktsync"), nil
	}

	// Convert relative path to absolute path
	absPath, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
	}
	return absPath, nil
}

// LoadAccounts reads the linked accounts file. A missing file means no accounts.
func LoadAccounts(path string) ([]models.LinkedAccount, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var accounts []models.LinkedAccount
	if err := v.UnmarshalKey("accounts", &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	seen := make(map[string]bool, len(accounts))
	for i, account := range accounts {
		if account.ID == "" {
			return nil, fmt.Errorf("account %d: id is required", i)
		}
		if account.LocalUserID == "" {
			return nil, fmt.Errorf("account %s: local_user_id is required", account.ID)
		}
		if seen[account.ID] {
			return nil, fmt.Errorf("account %s: duplicate id", account.ID)
		}
		seen[account.ID] = true
	}

	return accounts, nil
}
