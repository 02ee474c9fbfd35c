// Package attachments downloads attachment files in the background.
//
// Download never blocks the caller: it returns a Future immediately and the
// transfer runs on a bounded pool. Futures are joined once, at the end of an
// export, with JoinAll. A failed transfer removes the partial file before its
// error is reported, and never affects other transfers.
package attachments

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/trackport/internal/telemetry"
)

const scopeName = "github.com/steveyegge/trackport/attachments"

// DefaultWorkers is the pool size used when NewDownloader gets workers <= 0.
const DefaultWorkers = 4

// Result describes a file on disk.
type Result struct {
	Path    string `json:"path" yaml:"path" toml:"path"`
	Size    int64  `json:"size" yaml:"size" toml:"size"`
	Digest  string `json:"blake3" yaml:"blake3" toml:"blake3"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty" toml:"skipped,omitempty"` // file already existed, nothing fetched
}

// Downloader schedules attachment transfers.
type Downloader struct {
	fetcher Fetcher
	sem     *semaphore.Weighted
	log     *slog.Logger

	transfers metric.Int64Counter
	bytes     metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewDownloader returns a downloader running at most workers transfers at a
// time. log may be nil.
func NewDownloader(f Fetcher, workers int, log *slog.Logger) *Downloader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	m := telemetry.Meter(scopeName)
	transfers, _ := m.Int64Counter("trackport.attachments.downloads",
		metric.WithDescription("Attachment downloads by outcome"),
	)
	bytes, _ := m.Int64Counter("trackport.attachments.bytes",
		metric.WithDescription("Bytes written for downloaded attachments"),
		metric.WithUnit("By"),
	)
	duration, _ := m.Float64Histogram("trackport.attachments.duration",
		metric.WithDescription("Attachment download duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &Downloader{
		fetcher:   f,
		sem:       semaphore.NewWeighted(int64(workers)),
		log:       log,
		transfers: transfers,
		bytes:     bytes,
		duration:  duration,
	}
}

// Path returns where attachment attachmentID, named name, of task taskID is
// stored under base. Every attachment gets its own directory, so attachments
// sharing a name never share a file. Path separators in the components are
// replaced so nothing escapes base.
func Path(base, taskID, attachmentID, name string) string {
	return filepath.Join(base, safeName(taskID), safeName(attachmentID), safeName(name))
}

func safeName(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	switch s {
	case "", ".", "..":
		return "_" + s
	}
	return s
}

// Download schedules a transfer of url to Path(base, taskID, attachmentID,
// name) and returns at once. If the target already exists nothing is fetched.
func (d *Downloader) Download(ctx context.Context, base, taskID, attachmentID, name, url string) *Future {
	target := Path(base, taskID, attachmentID, name)
	f := newFuture(target, url)

	if _, err := os.Stat(target); err == nil {
		d.log.Info("skipping attachment, already downloaded", "name", name, "task", taskID, "attachment", attachmentID)
		go func() {
			res, err := describe(target)
			res.Skipped = true
			d.record(ctx, "skipped", res.Size, 0)
			f.complete(res, err)
		}()
		return f
	}

	go func() {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			f.complete(Result{Path: target}, err)
			return
		}
		defer d.sem.Release(1)

		d.log.Info("starting download of attachment", "name", name, "task", taskID, "attachment", attachmentID)
		start := time.Now()
		res, err := d.transfer(ctx, target, url)
		if err != nil {
			d.record(ctx, "failed", 0, time.Since(start))
			d.log.Warn("attachment download failed", "name", name, "task", taskID, "attachment", attachmentID, "error", err)
		} else {
			d.record(ctx, "ok", res.Size, time.Since(start))
			d.log.Info("finished download of attachment", "name", name, "task", taskID, "attachment", attachmentID)
		}
		f.complete(res, err)
	}()
	return f
}

func (d *Downloader) transfer(ctx context.Context, target, url string) (Result, error) {
	res := Result{Path: target}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return res, fmt.Errorf("create attachment directory: %w", err)
	}
	// #nosec G304 - target is built from sanitized components
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return res, fmt.Errorf("create attachment file: %w", err)
	}

	h := blake3.New()
	cw := &countingWriter{w: io.MultiWriter(file, h)}
	fetchErr := d.fetcher.Fetch(ctx, url, cw)
	closeErr := file.Close()
	if err := errors.Join(fetchErr, closeErr); err != nil {
		if rmErr := os.Remove(target); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("remove partial file: %w", rmErr))
		}
		return res, err
	}

	res.Size = cw.n
	res.Digest = hex.EncodeToString(h.Sum(nil))
	return res, nil
}

func (d *Downloader) record(ctx context.Context, outcome string, size int64, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	d.transfers.Add(ctx, 1, attrs)
	if size > 0 {
		d.bytes.Add(ctx, size, attrs)
	}
	if elapsed > 0 {
		d.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
	}
}

// describe hashes an existing file.
func describe(path string) (Result, error) {
	res := Result{Path: path}
	// #nosec G304 - path was produced by Path
	file, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer func() { _ = file.Close() }()

	h := blake3.New()
	n, err := io.Copy(h, file)
	if err != nil {
		return res, fmt.Errorf("hash %s: %w", path, err)
	}
	res.Size = n
	res.Digest = hex.EncodeToString(h.Sum(nil))
	return res, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
