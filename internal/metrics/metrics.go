// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the loader and the notebook downloader.
//
// It exposes a narrow interface (Backend) focused on counters and timing
// data and a global, pluggable backend that defaults to a no-op, so metrics
// are always safe to call. Concrete systems live in subpackages (prompush,
// datadog).
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal       = "kgtorrent_step_total"
	StepDuration    = "kgtorrent_step_duration_seconds"
	RowsTotal       = "kgtorrent_rows_total"
	BatchesTotal    = "kgtorrent_batches_total"
	DownloadsTotal  = "kgtorrent_downloads_total"
	defaultJobLabel = "kgtorrent"
)

// Row kinds recorded with RecordRows.
const (
	KindRead        = "read"
	KindFilteredOut = "filtered_out"
	KindWritten     = "written"
	KindCacheErrors = "cache_errors"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func job(j string) string {
	if j == "" {
		return defaultJobLabel
	}
	return j
}

// RecordStep counts one execution of step (e.g. "load", "download") for a
// table and observes its duration.
func RecordStep(jobName, step, table string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job(jobName),
		"step":   step,
		"table":  table,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows increments the row counter of a table for the given kind
// (KindRead, KindFilteredOut, KindWritten, KindCacheErrors).
func RecordRows(jobName, table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job(jobName),
		"table": table,
		"kind":  kind,
	})
}

// RecordBatches increments the batch counter of a table.
func RecordBatches(jobName, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job":   job(jobName),
		"table": table,
	})
}

// RecordDownload counts one notebook download attempt by outcome
// ("ok", "skipped", "failed").
func RecordDownload(jobName, status string) {
	backend.IncCounter(DownloadsTotal, 1, Labels{
		"job":    job(jobName),
		"status": status,
	})
}
