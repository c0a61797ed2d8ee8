// Package config defines the run configuration of kgtorrent and how it is
// assembled from flags, the environment and an optional config file.
//
// Every option is a flag; nested sections use dotted flag names
// ("storage.kind", "download.rps") which double as config file keys and as
// KGTORRENT_ environment variables ("KGTORRENT_STORAGE_KIND").
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kgtorrent/internal/cache"
	"kgtorrent/internal/storage"
)

// Config is the full set of options for one run.
type Config struct {
	// Dataset is the directory holding the MetaKaggle CSV files.
	Dataset string
	Cache   Cache
	Storage Storage

	// BatchSize is the number of rows per bulk insert.
	BatchSize int
	// DateLayouts overrides the builtin date layouts when non-empty.
	DateLayouts []string

	// Notebooks is the directory notebooks are downloaded into.
	Notebooks string
	Download  Download
	Metrics   Metrics

	// Job labels metrics; the CLI fills it with the run ID when empty.
	Job     string
	Verbose bool
}

// Cache configures the preprocessed table artifacts.
type Cache struct {
	Dir string
	// Validate is one of none, stat, hash.
	Validate string
}

// Storage selects the destination database.
type Storage struct {
	Kind     string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int
}

// Download configures the notebook downloader.
type Download struct {
	// Strategy is HTTP or API.
	Strategy    string
	Languages   []string
	Concurrency int
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Retries           int
	Timeout           time.Duration
	BaseURL           string
	APIURL            string
	KaggleUsername    string
	KaggleKey         string
	// Limit caps the number of kernels; zero means all.
	Limit int
}

// Metrics selects where run metrics are sent.
type Metrics struct {
	// Backend is one of none, prompush, datadog.
	Backend     string
	Pushgateway string
	Statsd      string
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Cache:     Cache{Dir: "kgtorrent-cache", Validate: string(cache.PolicyNone)},
		Storage:   Storage{Kind: "postgres", MaxConns: 4},
		BatchSize: 10_000,
		Notebooks: "notebooks",
		Download: Download{
			Strategy:          "HTTP",
			Languages:         []string{"IPython Notebook HTML"},
			Concurrency:       4,
			RequestsPerSecond: 2,
			Retries:           3,
			Timeout:           60 * time.Second,
			BaseURL:           "https://www.kaggle.com",
			APIURL:            "https://www.kaggle.com/api/v1",
		},
		Metrics: Metrics{Backend: "none", Statsd: "127.0.0.1:8125"},
	}
}

// StorageConfig converts the storage section for storage.New.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Kind:     c.Storage.Kind,
		DSN:      c.Storage.DSN,
		Host:     c.Storage.Host,
		Port:     c.Storage.Port,
		User:     c.Storage.User,
		Password: c.Storage.Password,
		Database: c.Storage.Name,
		MaxConns: c.Storage.MaxConns,
	}
}

// CachePolicy parses Cache.Validate.
func (c Config) CachePolicy() (cache.Policy, error) {
	return cache.ParsePolicy(c.Cache.Validate)
}

// kaggleFile is the credentials file written by the official Kaggle CLI.
type kaggleFile struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// lookupEnv and userHomeDir are replaced in tests.
var (
	lookupEnv   = os.LookupEnv
	userHomeDir = os.UserHomeDir
)

// ResolveKaggleCredentials fills missing Kaggle API credentials from
// KAGGLE_USERNAME/KAGGLE_KEY, then from $KAGGLE_CONFIG_DIR/kaggle.json or
// ~/.kaggle/kaggle.json. Credentials already set are kept. A missing file is
// not an error.
func (c *Config) ResolveKaggleCredentials() error {
	d := &c.Download
	if d.KaggleUsername == "" {
		d.KaggleUsername, _ = lookupEnv("KAGGLE_USERNAME")
	}
	if d.KaggleKey == "" {
		d.KaggleKey, _ = lookupEnv("KAGGLE_KEY")
	}
	if d.KaggleUsername != "" && d.KaggleKey != "" {
		return nil
	}

	dir, ok := lookupEnv("KAGGLE_CONFIG_DIR")
	if !ok || dir == "" {
		home, err := userHomeDir()
		if err != nil {
			return nil
		}
		dir = filepath.Join(home, ".kaggle")
	}
	path := filepath.Join(dir, "kaggle.json")
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var kf kaggleFile
	if err := json.Unmarshal(b, &kf); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if d.KaggleUsername == "" {
		d.KaggleUsername = kf.Username
	}
	if d.KaggleKey == "" {
		d.KaggleKey = kf.Key
	}
	return nil
}
