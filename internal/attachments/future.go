package attachments

import (
	"context"
	"fmt"
	"strings"
)

// Future is the pending outcome of one download.
type Future struct {
	path string
	url  string
	done chan struct{}
	res  Result
	err  error
}

func newFuture(path, url string) *Future {
	return &Future{path: path, url: url, done: make(chan struct{})}
}

func (f *Future) complete(res Result, err error) {
	f.res, f.err = res, err
	close(f.done)
}

// Path is the file the download writes to.
func (f *Future) Path() string { return f.path }

// Done is closed once the download has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the download finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return Result{Path: f.path}, ctx.Err()
	}
}

// DownloadError is a failed download.
type DownloadError struct {
	Path string
	URL  string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DownloadErrors aggregates every failed download of a join.
type DownloadErrors struct {
	Failures []*DownloadError
}

func (e *DownloadErrors) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d attachment download(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *DownloadErrors) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// JoinAll waits for every future. Results are returned in input order, with
// zero-size entries for failures. The error is a *DownloadErrors listing all
// failures, or nil.
func JoinAll(ctx context.Context, futures []*Future) ([]Result, error) {
	results := make([]Result, len(futures))
	var failed []*DownloadError
	for i, f := range futures {
		res, err := f.Wait(ctx)
		results[i] = res
		if err != nil {
			failed = append(failed, &DownloadError{Path: f.path, URL: f.url, Err: err})
		}
	}
	if len(failed) > 0 {
		return results, &DownloadErrors{Failures: failed}
	}
	return results, nil
}
