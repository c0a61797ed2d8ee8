package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"kgtorrent/internal/cache"
	"kgtorrent/internal/catalog"
	"kgtorrent/internal/config"
	"kgtorrent/internal/downloader"
	"kgtorrent/internal/loader"
	"kgtorrent/internal/metrics"
	"kgtorrent/internal/metrics/datadog"
	"kgtorrent/internal/metrics/prompush"
	csvparse "kgtorrent/internal/parser/csv"
	"kgtorrent/internal/schema"
	"kgtorrent/internal/storage"
)

var (
	errAborted     = errors.New("aborted")
	errNotEmptyDir = errors.New("notebook directory is not empty; use --force or an empty directory")
)

// newRepository is a test seam over storage.New.
var newRepository = storage.New

// app holds what every command shares.
type app struct {
	cfg    config.Config
	runID  string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// runner executes steps against one open repository.
type runner struct {
	*app
	repo storage.Repository
	cat  *catalog.Catalog
}

func (a *app) catalog() *catalog.Catalog { return catalog.MetaKaggle() }

func (a *app) databaseLabel() string {
	if a.cfg.Storage.Name != "" {
		return a.cfg.Storage.Name
	}
	return "(from dsn)"
}

// withRepository opens the destination and the metrics backend, runs fn and
// releases both.
func (a *app) withRepository(ctx context.Context, fn func(*runner) error) error {
	flush := a.setupMetrics()
	defer flush()

	start := time.Now()
	repo, err := newRepository(ctx, a.cfg.StorageConfig())
	if err != nil {
		return fmt.Errorf("open %s: %w", a.cfg.Storage.Kind, err)
	}
	defer repo.Close()

	err = fn(&runner{app: a, repo: repo, cat: a.catalog()})
	log.Printf("kgtorrent: run_id=%s done in %s", a.runID, time.Since(start).Truncate(time.Millisecond))
	return err
}

// setupMetrics installs the configured backend and returns its flush. A
// backend that fails to start is logged and metrics stay disabled.
func (a *app) setupMetrics() func() {
	var (
		b   metrics.Backend
		err error
	)
	switch a.cfg.Metrics.Backend {
	case "prompush":
		var pb *prompush.Backend
		pb, err = prompush.NewBackend(a.cfg.Job, a.cfg.Metrics.Pushgateway)
		if err == nil {
			b = pb.Group("run_id", a.runID)
		}
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       a.cfg.Metrics.Statsd,
			GlobalTags: []string{"run_id:" + a.runID},
		})
	default:
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", a.cfg.Metrics.Backend, err)
		return func() {}
	}

	log.Printf("metrics: backend=%s job=%s", a.cfg.Metrics.Backend, a.cfg.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// populate loads every catalog table and prints the run summary.
func (r *runner) populate(ctx context.Context) error {
	policy, err := r.cfg.CachePolicy()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.cfg.Cache.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	store := cache.NewStore(r.cfg.Cache.Dir)
	reader := loader.NewReader(r.cfg.Dataset, store, policy, r.cat, csvparse.Options{Verbose: r.cfg.Verbose})
	l := loader.New(r.cat, reader, store, r.repo, loader.Options{
		BatchSize:   r.cfg.BatchSize,
		DateLayouts: r.cfg.DateLayouts,
		Job:         r.cfg.Job,
		Verbose:     r.cfg.Verbose,
	})

	rep, err := l.Run(ctx)
	if serr := rep.WriteSummary(r.stdout); serr != nil {
		log.Printf("kgtorrent: write summary: %v", serr)
	}
	return err
}

// download fetches the notebooks of the selected kernels and records their
// local paths.
func (r *runner) download(ctx context.Context) error {
	start := time.Now()
	err := r.downloadNotebooks(ctx)
	metrics.RecordStep(r.cfg.Job, "download", "Kernels", err, time.Since(start))
	return err
}

func (r *runner) downloadNotebooks(ctx context.Context) error {
	dc := r.cfg.Download
	strategy, err := downloader.ParseStrategy(dc.Strategy)
	if err != nil {
		return err
	}
	client := downloader.NewClient(downloader.ClientConfig{
		Timeout:           dc.Timeout,
		MaxRetries:        dc.Retries,
		RequestsPerSecond: dc.RequestsPerSecond,
	})
	d, err := downloader.New(client, downloader.Options{
		Strategy:    strategy,
		BaseURL:     dc.BaseURL,
		APIURL:      dc.APIURL,
		Username:    dc.KaggleUsername,
		Key:         dc.KaggleKey,
		Concurrency: dc.Concurrency,
		Job:         r.cfg.Job,
		Verbose:     r.cfg.Verbose,
	})
	if err != nil {
		return err
	}

	refs, err := downloader.SelectKernels(ctx, r.repo, dc.Languages, dc.Limit)
	if err != nil {
		return err
	}
	log.Printf("downloader: selected %d kernels (languages=%s)", len(refs), strings.Join(dc.Languages, ","))

	results, err := d.Download(ctx, refs, r.cfg.Notebooks)
	if err != nil {
		return err
	}
	n, err := downloader.RecordPaths(ctx, r.repo, results)
	if err != nil {
		return err
	}

	var failed int
	for _, res := range results {
		if res.Status == downloader.Failed {
			failed++
		}
	}
	fmt.Fprintf(r.stdout, "notebooks: selected=%d stored=%d failed=%d dir=%s\n", len(refs), n, failed, r.cfg.Notebooks)
	return nil
}

// drop removes every catalog table, children first.
func (r *runner) drop(ctx context.Context) error {
	order, err := r.cat.Order()
	if err != nil {
		return err
	}
	if err := schema.Drop(ctx, r.repo, order); err != nil {
		return err
	}
	log.Printf("kgtorrent: dropped %d tables", len(order))
	return nil
}

// ensureEmptyDir accepts a missing or empty directory.
func ensureEmptyDir(dir string) error {
	f, err := os.Open(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	if err == io.EOF || (err == nil && len(names) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	return fmt.Errorf("%s: %w", dir, errNotEmptyDir)
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
