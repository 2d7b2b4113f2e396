// This file defines the configuration structure for the migration tool.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml. Every component
// receives this struct by reference at construction; nothing reads
// viper (or any other global) after process start.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Legacy struct {
		BaseURL       string `mapstructure:"base_url"`
		ProbeTimeoutS int    `mapstructure:"probe_timeout_s"`
		FetchTimeoutS int    `mapstructure:"fetch_timeout_s"`
	} `mapstructure:"legacy"`
	Storage struct {
		Endpoint      string `mapstructure:"endpoint"`
		Region        string `mapstructure:"region"`
		Bucket        string `mapstructure:"bucket"`
		Namespace     string `mapstructure:"namespace"`
		AccessKey     string `mapstructure:"access_key"`
		SecretKey     string `mapstructure:"secret_key"`
		PublicBaseURL string `mapstructure:"public_base_url"`
	} `mapstructure:"storage"`
	ContentRepo struct {
		BaseURL string `mapstructure:"base_url"`
		Token   string `mapstructure:"token"`
	} `mapstructure:"contentrepo"`
	Pipeline struct {
		Workers          int     `mapstructure:"workers"`
		MaxPhotos        int     `mapstructure:"max_photos"`
		ArchivedPhotoCap int     `mapstructure:"archived_photo_cap"`
		FailureThreshold float64 `mapstructure:"failure_threshold"`
	} `mapstructure:"pipeline"`
	Importer struct {
		CheckpointPath string `mapstructure:"checkpoint_path"`
	} `mapstructure:"importer"`
	Cache struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"cache"`
	Inbox struct {
		Path    string `mapstructure:"path"`
		Enabled bool   `mapstructure:"enabled"`
	} `mapstructure:"inbox"`
	Auth struct {
		// SessionDays is the reviewer session lifetime in days.
		SessionDays int `mapstructure:"session_days"`
	} `mapstructure:"auth"`
	// ScanInterval is how often (minutes) the server runs the photo
	// migration sweep. 0 disables scheduled sweeps.
	ScanInterval int `mapstructure:"scan_interval"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	viper.AddConfigPath(".")

	// Environment variables with the IMOVELSYNC_ prefix override file
	// values, e.g. IMOVELSYNC_STORAGE_BUCKET overrides `storage.bucket`.
	viper.SetEnvPrefix("IMOVELSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("scan_interval", 0)
	viper.SetDefault("database.path", "./imovelsync.db")
	viper.SetDefault("legacy.base_url", "http://fotos.imobiliaria-legada.com.br")
	viper.SetDefault("legacy.probe_timeout_s", 3)
	viper.SetDefault("legacy.fetch_timeout_s", 60)
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.namespace", "imoveis")
	viper.SetDefault("pipeline.workers", 5)
	viper.SetDefault("pipeline.max_photos", 20)
	viper.SetDefault("pipeline.archived_photo_cap", 3)
	viper.SetDefault("pipeline.failure_threshold", 0.10)
	viper.SetDefault("importer.checkpoint_path", "./import-checkpoint.json")
	viper.SetDefault("cache.path", "./photo-progress.json")
	viper.SetDefault("inbox.path", "./inbox")
	viper.SetDefault("inbox.enabled", false)
	viper.SetDefault("auth.session_days", 7)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
