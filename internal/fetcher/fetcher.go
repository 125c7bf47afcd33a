package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const userAgent = "imgclf/1.0"

// Fetcher downloads remote files to the local filesystem
type Fetcher struct {
	http   *http.Client
	logger *slog.Logger
}

// New creates a Fetcher. A nil client means no timeout, a nil logger discards.
func New(hc *http.Client, logger *slog.Logger) *Fetcher {
	if hc == nil {
		hc = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{http: hc, logger: logger}
}

// TempFile is a downloaded file that Close removes
type TempFile struct {
	Path string
}

// Close removes the file. It is safe to call more than once.
func (t *TempFile) Close() error {
	err := os.Remove(t.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}

// DownloadImage fetches rawURL into tempDir under a name derived from the URL path.
// The caller must Close the result.
func (f *Fetcher) DownloadImage(ctx context.Context, rawURL, tempDir string) (*TempFile, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return nil, err
	}

	// unique prefix so concurrent runs don't clobber each other
	local := filepath.Join(tempDir, uuid.NewString()+"-"+name)
	if err := f.Download(ctx, rawURL, local); err != nil {
		return nil, err
	}

	return &TempFile{Path: local}, nil
}

// Download streams rawURL into dst. On failure dst is removed.
func (f *Fetcher) Download(ctx context.Context, rawURL, dst string) error {
	u, err := parse(rawURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}

	f.logger.Info("downloaded", "url", u.String(), "path", dst, "bytes", n)
	return nil
}

// StatusError is returned for non-200 responses
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// FileName returns the base name of the URL path
func FileName(rawURL string) (string, error) {
	u, err := parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("no file name in URL: %s", rawURL)
	}
	return name, nil
}

func parse(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host in %q", rawURL)
	}
	return u, nil
}
