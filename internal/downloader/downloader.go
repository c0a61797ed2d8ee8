package downloader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"kgtorrent/internal/metrics"
	"kgtorrent/internal/storage"
)

// Strategy selects how notebooks are fetched.
type Strategy string

const (
	// StrategyHTTP downloads the full notebook, outputs included, from the
	// public script content endpoint.
	StrategyHTTP Strategy = "HTTP"
	// StrategyAPI uses the authenticated Kaggle API; notebooks come back
	// without cell outputs.
	StrategyAPI Strategy = "API"
)

const (
	DefaultBaseURL = "https://www.kaggle.com"
	DefaultAPIURL  = "https://www.kaggle.com/api/v1"
)

// ParseStrategy accepts "HTTP" or "API", case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToUpper(strings.TrimSpace(s))) {
	case StrategyHTTP:
		return StrategyHTTP, nil
	case StrategyAPI:
		return StrategyAPI, nil
	}
	return "", fmt.Errorf("downloader: unknown strategy %q (want HTTP or API)", s)
}

// Status is the outcome for one kernel. Pending marks a kernel that was never
// attempted, e.g. because the run was canceled first.
type Status int

const (
	Pending Status = iota
	Downloaded
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Downloaded:
		return "ok"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// Result is the outcome of one kernel download. Path is set for Downloaded
// and Skipped results.
type Result struct {
	Kernel KernelRef
	Path   string
	Status Status
	Bytes  int64
	Err    error
}

// Options configures a Downloader.
type Options struct {
	Strategy Strategy
	BaseURL  string
	APIURL   string
	// Username and Key are the Kaggle API credentials (StrategyAPI only).
	Username string
	Key      string
	// Concurrency bounds parallel downloads; <= 0 means 1.
	Concurrency int
	Job         string
	Verbose     bool
}

// Downloader fetches notebooks into a directory.
type Downloader struct {
	client *Client
	opt    Options
}

// New validates opt and returns a Downloader.
func New(client *Client, opt Options) (*Downloader, error) {
	if client == nil {
		return nil, errors.New("downloader: nil client")
	}
	switch opt.Strategy {
	case "":
		opt.Strategy = StrategyHTTP
	case StrategyHTTP:
	case StrategyAPI:
		if opt.Username == "" || opt.Key == "" {
			return nil, errors.New("downloader: API strategy requires Kaggle username and key")
		}
	default:
		return nil, fmt.Errorf("downloader: unknown strategy %q", opt.Strategy)
	}
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultBaseURL
	}
	if opt.APIURL == "" {
		opt.APIURL = DefaultAPIURL
	}
	if opt.Concurrency <= 0 {
		opt.Concurrency = 1
	}
	opt.BaseURL = strings.TrimRight(opt.BaseURL, "/")
	opt.APIURL = strings.TrimRight(opt.APIURL, "/")
	return &Downloader{client: client, opt: opt}, nil
}

// Download fetches every kernel in refs into dir. Per-kernel failures are
// reported in the returned results, which keep the order of refs; only
// cancellation of ctx or an unusable dir is returned as an error, and kernels
// not attempted before cancellation stay Pending.
func (d *Downloader) Download(ctx context.Context, refs []KernelRef, dir string) ([]Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("downloader: create %s: %w", dir, err)
	}

	start := time.Now()
	results := make([]Result, len(refs))
	for i, ref := range refs {
		results[i] = Result{Kernel: ref, Status: Pending}
	}
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opt.Concurrency)
	for i, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		i, ref := i, ref
		g.Go(func() error {
			res := d.fetchOne(gctx, ref, dir)
			results[i] = res
			total.Add(res.Bytes)
			metrics.RecordDownload(d.opt.Job, res.Status.String())
			if res.Status == Failed {
				log.Printf("downloader: kernel=%d user=%s slug=%s failed: %v", ref.ID, ref.UserName, ref.Slug, res.Err)
			} else if d.opt.Verbose {
				log.Printf("downloader: kernel=%d %s %s", ref.ID, res.Status, res.Path)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	var ok, skipped, failed int
	for _, r := range results {
		switch r.Status {
		case Downloaded:
			ok++
		case Skipped:
			skipped++
		case Failed:
			failed++
		}
	}
	log.Printf("downloader: strategy=%s kernels=%d downloaded=%d skipped=%d failed=%d bytes=%s elapsed=%s",
		d.opt.Strategy, len(refs), ok, skipped, failed,
		humanize.Bytes(uint64(total.Load())), time.Since(start).Truncate(time.Millisecond))
	return results, nil
}

func (d *Downloader) fetchOne(ctx context.Context, ref KernelRef, dir string) Result {
	res := Result{Kernel: ref, Status: Failed}

	name, err := NotebookFilename(ref.UserName, ref.Slug)
	if err != nil {
		res.Err = err
		return res
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		res.Path, res.Status = path, Skipped
		return res
	}

	var body []byte
	switch d.opt.Strategy {
	case StrategyAPI:
		body, err = d.fetchAPI(ctx, ref)
	default:
		body, err = d.fetchHTTP(ctx, ref)
	}
	if err != nil {
		res.Err = err
		return res
	}
	if err := writeFileAtomic(path, body); err != nil {
		res.Err = err
		return res
	}
	res.Path, res.Status, res.Bytes = path, Downloaded, int64(len(body))
	return res
}

func (d *Downloader) fetchHTTP(ctx context.Context, ref KernelRef) ([]byte, error) {
	u := fmt.Sprintf("%s/kernels/scriptcontent/%d/download", d.opt.BaseURL, ref.VersionID)
	resp, err := d.client.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloader: read %s: %w", u, err)
	}
	return b, nil
}

// pullResponse is the part of the kernels/pull payload we keep.
type pullResponse struct {
	Blob struct {
		Source string `json:"source"`
	} `json:"blob"`
}

func (d *Downloader) fetchAPI(ctx context.Context, ref KernelRef) ([]byte, error) {
	q := url.Values{}
	q.Set("userName", ref.UserName)
	q.Set("kernelSlug", ref.Slug)
	u := d.opt.APIURL + "/kernels/pull?" + q.Encode()

	hdr := http.Header{}
	hdr.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(d.opt.Username+":"+d.opt.Key)))

	resp, err := d.client.Get(ctx, u, hdr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var pr pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("downloader: decode %s: %w", u, err)
	}
	if pr.Blob.Source == "" {
		return nil, fmt.Errorf("downloader: %s/%s: empty notebook source", ref.UserName, ref.Slug)
	}
	return []byte(pr.Blob.Source), nil
}

// writeFileAtomic writes through a temp file in the same directory so a
// canceled run never leaves a truncated notebook that a later run would skip.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".nb-*")
	if err != nil {
		return fmt.Errorf("downloader: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("downloader: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("downloader: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("downloader: write %s: %w", path, err)
	}
	return nil
}

// RecordPaths stores each downloaded or already present notebook path in
// Kernels.LocalPath. It returns the number of rows updated.
func RecordPaths(ctx context.Context, repo storage.Repository, results []Result) (int, error) {
	updates := make(map[any]any)
	for _, r := range results {
		if (r.Status != Downloaded && r.Status != Skipped) || r.Path == "" {
			continue
		}
		updates[r.Kernel.ID] = filepath.Base(r.Path)
	}
	if len(updates) == 0 {
		return 0, nil
	}
	return storage.UpdateColumn(ctx, repo, "Kernels", "LocalPath", "Id", updates)
}
