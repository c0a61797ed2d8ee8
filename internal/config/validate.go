package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"kgtorrent/internal/cache"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is the option name
// (e.g. "storage.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var storageKinds = map[string]bool{"postgres": true, "mysql": true, "mssql": true, "sqlite": true}

// Validate performs static checks over c and returns every issue found. It
// does not mutate c and does not connect anywhere.
func Validate(c Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch fi, err := os.Stat(c.Dataset); {
	case strings.TrimSpace(c.Dataset) == "":
		add(SeverityError, "dataset", "dataset directory must not be empty")
	case err != nil:
		add(SeverityWarning, "dataset", "dataset directory %q is not readable (%v); only cached tables can be loaded", c.Dataset, err)
	case !fi.IsDir():
		add(SeverityError, "dataset", "%q is not a directory", c.Dataset)
	}

	if strings.TrimSpace(c.Cache.Dir) == "" {
		add(SeverityError, "cache.dir", "cache directory must not be empty")
	}
	if _, err := cache.ParsePolicy(c.Cache.Validate); err != nil {
		add(SeverityError, "cache.validate", "%v", err)
	}

	issues = append(issues, validateStorage(c.Storage)...)

	switch {
	case c.BatchSize <= 0:
		add(SeverityError, "batch-size", "batch size must be > 0, got %d", c.BatchSize)
	case c.BatchSize > 1_000_000:
		add(SeverityWarning, "batch-size", "batch size %d is very large; each batch is held in one transaction", c.BatchSize)
	}
	ref := time.Date(2019, 11, 28, 13, 4, 5, 0, time.UTC)
	for i, layout := range c.DateLayouts {
		if _, err := time.Parse(layout, ref.Format(layout)); err != nil || !strings.Contains(layout, "2006") {
			add(SeverityError, fmt.Sprintf("date-layouts[%d]", i), "%q is not a usable date layout (needs a 2006 year)", layout)
		}
	}

	if strings.TrimSpace(c.Notebooks) == "" {
		add(SeverityError, "notebooks", "notebook directory must not be empty")
	}
	issues = append(issues, validateDownload(c.Download)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	if !storageKinds[s.Kind] {
		return append(issues, Issue{SeverityError, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; want postgres, mysql, mssql or sqlite", s.Kind)})
	}
	if s.DSN == "" && s.Name == "" {
		issues = append(issues, Issue{SeverityError, "storage.name", "either storage.dsn or storage.name is required"})
	}
	if s.Port < 0 || s.Port > 65535 {
		issues = append(issues, Issue{SeverityError, "storage.port", fmt.Sprintf("port %d out of range", s.Port)})
	}
	if s.MaxConns < 0 {
		issues = append(issues, Issue{SeverityError, "storage.max-conns", "max connections must not be negative"})
	}
	if s.Kind == "sqlite" && (s.Host != "" || s.User != "") {
		issues = append(issues, Issue{SeverityWarning, "storage.host", "host and user are ignored for sqlite"})
	}
	return issues
}

func validateDownload(d Download) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg})
	}

	switch strings.ToUpper(d.Strategy) {
	case "HTTP":
	case "API":
		if d.KaggleUsername == "" || d.KaggleKey == "" {
			add(SeverityError, "download.kaggle-username", "API strategy requires Kaggle credentials (flags, KAGGLE_USERNAME/KAGGLE_KEY or kaggle.json)")
		}
	default:
		add(SeverityError, "download.strategy", fmt.Sprintf("unknown strategy %q; want HTTP or API", d.Strategy))
	}
	if len(d.Languages) == 0 {
		add(SeverityWarning, "download.languages", "no languages given; kernels of every language will be downloaded")
	}
	if d.Concurrency < 1 {
		add(SeverityError, "download.concurrency", "concurrency must be >= 1")
	}
	switch {
	case d.RequestsPerSecond < 0:
		add(SeverityError, "download.rps", "request rate must not be negative")
	case d.RequestsPerSecond == 0:
		add(SeverityWarning, "download.rps", "rate limiting disabled; Kaggle may answer 429")
	}
	if d.Retries < 0 {
		add(SeverityError, "download.retries", "retries must not be negative")
	}
	if d.Timeout <= 0 {
		add(SeverityError, "download.timeout", "timeout must be > 0")
	}
	if d.Limit < 0 {
		add(SeverityError, "download.limit", "limit must not be negative")
	}
	for path, raw := range map[string]string{"download.base-url": d.BaseURL, "download.api-url": d.APIURL} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			add(SeverityError, path, fmt.Sprintf("%q is not an absolute URL", raw))
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "prompush":
		if m.Pushgateway == "" {
			return []Issue{{SeverityError, "metrics.pushgateway", "prompush backend requires a Pushgateway URL"}}
		}
	case "datadog":
		if m.Statsd == "" {
			return []Issue{{SeverityError, "metrics.statsd", "datadog backend requires a DogStatsD address"}}
		}
	default:
		return []Issue{{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; want none, prompush or datadog", m.Backend)}}
	}
	return nil
}
