package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Apply.
const EnvPrefix = "KGTORRENT"

// BindFlags registers one flag per option on fs, pointing into c. The
// current values of c become the flag defaults.
func BindFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVarP(&c.Dataset, "dataset", "d", c.Dataset, "Directory holding the MetaKaggle CSV files.")
	fs.StringVar(&c.Cache.Dir, "cache.dir", c.Cache.Dir, "Directory for preprocessed table artifacts.")
	fs.StringVar(&c.Cache.Validate, "cache.validate", c.Cache.Validate, "Artifact validation against the CSV: none, stat or hash.")

	fs.StringVar(&c.Storage.Kind, "storage.kind", c.Storage.Kind, "Destination database: postgres, mysql, mssql or sqlite.")
	fs.StringVar(&c.Storage.DSN, "storage.dsn", c.Storage.DSN, "Connection string; overrides the discrete fields.")
	fs.StringVar(&c.Storage.Host, "storage.host", c.Storage.Host, "Database host.")
	fs.IntVar(&c.Storage.Port, "storage.port", c.Storage.Port, "Database port.")
	fs.StringVar(&c.Storage.User, "storage.user", c.Storage.User, "Database user.")
	fs.StringVar(&c.Storage.Password, "storage.password", c.Storage.Password, "Database password.")
	fs.StringVar(&c.Storage.Name, "storage.name", c.Storage.Name, "Database name (file path for sqlite).")
	fs.IntVar(&c.Storage.MaxConns, "storage.max-conns", c.Storage.MaxConns, "Maximum open connections.")

	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "Rows per bulk insert.")
	fs.StringSliceVar(&c.DateLayouts, "date-layouts", c.DateLayouts, "Go time layouts tried for date columns (default: builtin list).")

	fs.StringVarP(&c.Notebooks, "notebooks", "n", c.Notebooks, "Directory notebooks are downloaded into.")
	fs.StringVar(&c.Download.Strategy, "download.strategy", c.Download.Strategy, "HTTP (full notebooks) or API (Kaggle API, no cell outputs).")
	fs.StringSliceVar(&c.Download.Languages, "download.languages", c.Download.Languages, "Kernel languages to download.")
	fs.IntVar(&c.Download.Concurrency, "download.concurrency", c.Download.Concurrency, "Parallel downloads.")
	fs.Float64Var(&c.Download.RequestsPerSecond, "download.rps", c.Download.RequestsPerSecond, "Request rate limit; 0 disables it.")
	fs.IntVar(&c.Download.Retries, "download.retries", c.Download.Retries, "Retries per request on 429, 5xx and transport errors.")
	fs.DurationVar(&c.Download.Timeout, "download.timeout", c.Download.Timeout, "Per-request timeout.")
	fs.StringVar(&c.Download.BaseURL, "download.base-url", c.Download.BaseURL, "Kaggle site URL (HTTP strategy).")
	fs.StringVar(&c.Download.APIURL, "download.api-url", c.Download.APIURL, "Kaggle API URL (API strategy).")
	fs.StringVar(&c.Download.KaggleUsername, "download.kaggle-username", c.Download.KaggleUsername, "Kaggle API username.")
	fs.StringVar(&c.Download.KaggleKey, "download.kaggle-key", c.Download.KaggleKey, "Kaggle API key.")
	fs.IntVar(&c.Download.Limit, "download.limit", c.Download.Limit, "Download at most this many notebooks; 0 means all.")

	fs.StringVar(&c.Metrics.Backend, "metrics.backend", c.Metrics.Backend, "Metrics backend: none, prompush or datadog.")
	fs.StringVar(&c.Metrics.Pushgateway, "metrics.pushgateway", c.Metrics.Pushgateway, "Prometheus Pushgateway URL.")
	fs.StringVar(&c.Metrics.Statsd, "metrics.statsd", c.Metrics.Statsd, "DogStatsD address.")

	fs.StringVar(&c.Job, "job", c.Job, "Job label for metrics (default: run ID).")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Verbose logging.")
}

// Apply fills every flag in flags that was not set on the command line from
// the environment (KGTORRENT_<NAME>, dots and dashes as underscores) or the
// config file named by the "config" flag, in that order. The config file
// type follows its extension (toml when it has none); keys that are not
// flag names are rejected.
func Apply(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		if filepath.Ext(c) == "" {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading configuration file '%s': %v", c, err)
		}
		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return fmt.Errorf("config: invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// GetString is empty for a real list from a config file.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			// Set on a slice flag appends after the first call.
			if value == strings.Join(sv.GetSlice(), ",") {
				return
			}
			var items []string
			if value != "" {
				items = strings.Split(value, ",")
			}
			flagErr = sv.Replace(items)
			return
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = fmt.Errorf("config: option %s: %w", f.Name, err)
		}
	})
	return flagErr
}
