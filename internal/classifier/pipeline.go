package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pbaille/imgclf/internal/domain"
	"github.com/pbaille/imgclf/internal/fetcher"
	"github.com/pbaille/imgclf/internal/locator"
	"github.com/pbaille/imgclf/internal/metrics"
	"github.com/pbaille/imgclf/internal/ollama"
)

// Generator queries the inference server for one image
type Generator interface {
	Generate(ctx context.Context, imagePath, model string) (*ollama.GenerateResponse, error)
}

// Downloader fetches a remote image into a local temporary file
type Downloader interface {
	DownloadImage(ctx context.Context, rawURL, tempDir string) (*fetcher.TempFile, error)
}

// Pipeline classifies local directories or single remote images, one image at a time
type Pipeline struct {
	gen     Generator
	dl      Downloader
	model   string
	tempDir string
	out     io.Writer
	logger  *slog.Logger
	metrics *metrics.Recorder
	hook    func(domain.Outcome)
}

type Option func(*Pipeline)

// WithOutput sets where results and diagnostics are printed (stdout by default)
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithHook registers fn to receive every outcome, success or failure
func WithHook(fn func(domain.Outcome)) Option {
	return func(p *Pipeline) { p.hook = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// NewPipeline creates a Pipeline that classifies with model
func NewPipeline(gen Generator, dl Downloader, model string, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:     gen,
		dl:      dl,
		model:   model,
		tempDir: os.TempDir(),
		out:     os.Stdout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClassifyFile runs one image through the inference server and the label extractor
func (p *Pipeline) ClassifyFile(ctx context.Context, path domain.ImagePath) domain.Outcome {
	start := time.Now()
	outcome := p.classify(ctx, path)
	status := Status(outcome.Err)

	p.metrics.Classified(status, time.Since(start))
	p.logger.Debug("classified", "path", path, "status", status, "label", outcome.Label)
	p.emit(outcome)
	return outcome
}

func (p *Pipeline) emit(o domain.Outcome) {
	if p.hook != nil {
		p.hook(o)
	}
}

func (p *Pipeline) classify(ctx context.Context, path domain.ImagePath) domain.Outcome {
	resp, err := p.gen.Generate(ctx, string(path), p.model)
	if err != nil {
		return domain.Outcome{Path: path, Err: err}
	}

	outcome := domain.Outcome{Path: path}
	if resp != nil {
		outcome.Raw = string(resp.Raw)
	}
	outcome.Label, outcome.Err = ExtractLabel(resp)
	return outcome
}

// ClassifyDataset classifies every image under dir and returns the labels of
// those that succeeded. Per-image failures are reported and skipped.
func (p *Pipeline) ClassifyDataset(ctx context.Context, dir string) (domain.Results, error) {
	paths, err := locator.FindImages(dir)
	if err != nil {
		return nil, err
	}
	p.logger.Info("dataset", "dir", dir, "images", len(paths), "model", p.model)

	results := make(domain.Results)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		outcome := p.ClassifyFile(ctx, path)
		p.reportFile(outcome)
		if outcome.OK() {
			results[path] = outcome.Label
		}
	}

	return results, nil
}

// ClassifyURL downloads rawURL, classifies it and removes the download on every path
func (p *Pipeline) ClassifyURL(ctx context.Context, rawURL string) domain.Outcome {
	tmp, err := p.dl.DownloadImage(ctx, rawURL, p.tempDir)
	if err != nil {
		p.metrics.Downloaded("error")
		fmt.Fprintf(p.out, "Failed to download image: %v\n", err)
		outcome := domain.Outcome{Err: fmt.Errorf("download: %w", err)}
		p.emit(outcome)
		return outcome
	}
	p.metrics.Downloaded("ok")
	defer func() {
		if err := tmp.Close(); err != nil {
			p.logger.Warn("cleanup", "path", tmp.Path, "err", err)
		}
	}()

	outcome := p.ClassifyFile(ctx, domain.ImagePath(tmp.Path))
	p.reportURL(outcome, rawURL)
	return outcome
}

func (p *Pipeline) reportFile(o domain.Outcome) {
	switch {
	case o.OK():
		fmt.Fprintf(p.out, "Image: %s → Classified as: %s\n", o.Path, o.Label)
	case unexpected(o.Err):
		fmt.Fprintf(p.out, "Unexpected response for %s: %s\n", o.Path, detail(o))
	default:
		fmt.Fprintf(p.out, "Error processing %s: %s\n", o.Path, detail(o))
	}
}

// reportURL names the URL on success only; the local temp path means nothing to the user
func (p *Pipeline) reportURL(o domain.Outcome, rawURL string) {
	switch {
	case o.OK():
		fmt.Fprintf(p.out, "Image URL: %s → Classified as: %s\n", rawURL, o.Label)
	case unexpected(o.Err):
		fmt.Fprintf(p.out, "Unexpected response: %s\n", detail(o))
	default:
		fmt.Fprintf(p.out, "Error processing image: %s\n", detail(o))
	}
}

// unexpected reports whether the server answered but the payload had no usable class
func unexpected(err error) bool {
	return errors.Is(err, ErrMissingClass) || errors.Is(err, ErrMalformedPayload)
}

func detail(o domain.Outcome) string {
	if o.Raw != "" {
		return o.Raw
	}
	return o.Err.Error()
}
