package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pbaille/imgclf/internal/config"
	"github.com/pbaille/imgclf/internal/fetcher"
	"github.com/sethvargo/go-retry"
)

// Downloader streams a URL into a local file
type Downloader interface {
	Download(ctx context.Context, rawURL, dst string) error
}

// Fetcher makes sure a dataset archive is downloaded and extracted
type Fetcher struct {
	dl      Downloader
	url     string
	dir     string
	retries uint64
	backoff time.Duration
	out     io.Writer
	logger  *slog.Logger
}

type Option func(*Fetcher)

func WithOutput(w io.Writer) Option {
	return func(f *Fetcher) { f.out = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithBackoff sets the base delay of the Fibonacci retry schedule
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) { f.backoff = d }
}

func New(dl Downloader, cfg config.DatasetConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		dl:      dl,
		url:     cfg.URL,
		dir:     cfg.Dir,
		retries: cfg.Retries,
		backoff: time.Second,
		out:     os.Stdout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure downloads the archive unless it is already on disk, extracts it,
// and returns the directory the archive unpacks to.
func (f *Fetcher) Ensure(ctx context.Context) (string, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	name, err := fetcher.FileName(f.url)
	if err != nil {
		return "", err
	}
	archive := filepath.Join(f.dir, name)

	if _, err := os.Stat(archive); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(f.out, "Downloading dataset...")
		if err := f.download(ctx, archive); err != nil {
			return "", err
		}
		fmt.Fprintln(f.out, "Download complete.")
	} else if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	} else {
		f.logger.Info("archive present, skipping download", "path", archive)
	}

	fmt.Fprintln(f.out, "Extracting dataset...")
	if err := Extract(archive, f.dir); err != nil {
		return "", err
	}

	root := filepath.Join(f.dir, archiveRoot(name))
	fmt.Fprintln(f.out, "Dataset ready in:", root)
	return root, nil
}

func (f *Fetcher) download(ctx context.Context, dst string) error {
	b := retry.WithMaxRetries(f.retries, retry.NewFibonacci(f.backoff))
	attempt := 0

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := f.dl.Download(ctx, f.url, dst)
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		f.logger.Warn("dataset download failed, retrying", "attempt", attempt, "err", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("download dataset: %w", err)
	}
	return nil
}

// shouldRetry treats server errors and transport failures as transient
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *fetcher.StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests
	}
	var pe *os.PathError
	return !errors.As(err, &pe)
}

// archiveRoot strips the compression suffixes: mnist_png.tar.gz -> mnist_png
func archiveRoot(name string) string {
	for _, ext := range []string{".tar.gz", ".tgz", ".tar"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
