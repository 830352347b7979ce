// config.go: settings struct and functions to load application settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SQLiteSettings contains settings for the SQLite store.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite store
	Path    string // path to the SQLite database file
}

// MySQLSettings contains settings for the MySQL store.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL store
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings contains the persistent store selection.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// UpstreamSettings contains settings for the WPRDC open-data API.
type UpstreamSettings struct {
	Endpoint      string // CKAN datastore_search_sql endpoint
	ResourceID    string // CKAN resource id of the code violations dataset
	PageSize      int    // maximum records fetched per check
	DefaultEpoch  string // fetch lower bound when the store is empty, YYYY-MM-DD
	FullSyncEpoch string // fetch lower bound for full sync runs, YYYY-MM-DD
}

// DashboardSettings contains the public dashboard location used in
// notification links.
type DashboardSettings struct {
	BaseURL string // base URL of the violations dashboard
}

// EmailSettings contains credentials for the transactional email API.
type EmailSettings struct {
	Endpoint string // email API endpoint
	APIKey   string // email API bearer token
	From     string // sender address
}

// SMSSettings contains credentials for the SMS gateway.
type SMSSettings struct {
	Endpoint   string // SMS gateway endpoint, account SID is appended
	AccountSID string // gateway account SID
	AuthToken  string // gateway auth token
	From       string // sender phone number
}

// PushSettings contains credentials for the APNs push gateway.
type PushSettings struct {
	Gateway        string // APNs gateway base URL
	KeyID          string // APNs signing key id
	TeamID         string // developer team id, used as token issuer
	BundleID       string // app bundle id, sent as apns-topic
	PrivateKeyPath string // path to the PEM encoded ES256 signing key
	MaxConcurrent  int    // maximum concurrent device deliveries
}

// NotificationSettings groups per-channel delivery credentials. Per-channel
// enablement and destinations are runtime state owned by the datastore
// checkpoint row, not this file.
type NotificationSettings struct {
	Email EmailSettings
	SMS   SMSSettings
	Push  PushSettings
}

// WebServerSettings contains settings for the trigger HTTP server.
type WebServerSettings struct {
	Enabled bool // true to enable the HTTP trigger endpoint
	Port    int  // port to listen on
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug logging

	Output       OutputSettings
	Upstream     UpstreamSettings
	Dashboard    DashboardSettings
	Notification NotificationSettings
	WebServer    WebServerSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// Settings struct and stores it as the active instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings

	// First run: persist the effective defaults so operators have a file
	// to edit instead of reverse-engineering viper keys.
	if viper.ConfigFileUsed() == "" {
		if path, err := defaultConfigPath(); err == nil {
			if err := SaveYAMLConfig(path, settings); err != nil {
				log.Printf("Failed to write starter config to %s: %v", path, err)
			}
		}
	}

	return settingsInstance, nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".config", "addressfinder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/addressfinder")
	viper.SetEnvPrefix("addressfinder")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus env cover a minimal run.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// ValidateSettings checks invariants that would otherwise surface as
// confusing runtime failures.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("both SQLite and MySQL stores are enabled, pick one")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no store is enabled, enable either the SQLite or the MySQL output")
	}
	if settings.Upstream.PageSize <= 0 {
		return fmt.Errorf("upstream page size must be positive, got %d", settings.Upstream.PageSize)
	}
	return nil
}

// Setting returns the active settings instance, loading it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath as YAML using an atomic
// rename, overwriting the existing file.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
