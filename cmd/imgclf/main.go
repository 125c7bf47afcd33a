package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pbaille/imgclf/internal/classifier"
	"github.com/pbaille/imgclf/internal/config"
	"github.com/pbaille/imgclf/internal/dataset"
	"github.com/pbaille/imgclf/internal/fetcher"
	"github.com/pbaille/imgclf/internal/metrics"
	"github.com/pbaille/imgclf/internal/ollama"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath  string
		datasetPath string
		imageURL    string
		model       string
	)

	cmd := &cobra.Command{
		Use:   "imgclf",
		Short: "Classify images with a local vision model",
		Long: `Classify every image under a directory (--dataset) or a single image
downloaded from a URL (--url) by asking an Ollama server for its class.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger := newLogger(cfg, cmd.ErrOrStderr())
			rec := metrics.New(model)

			p := classifier.NewPipeline(
				ollama.New(cfg.Ollama, ollama.WithLogger(logger)),
				fetcher.New(nil, logger),
				model,
				classifier.WithOutput(out),
				classifier.WithLogger(logger),
				classifier.WithMetrics(rec),
				classifier.WithTempDir(cfg.TempDir),
			)

			switch {
			case datasetPath != "":
				if info, err := os.Stat(datasetPath); err != nil || !info.IsDir() {
					fmt.Fprintln(out, "Error: Dataset path is not a valid directory.")
					return nil
				}
				results, err := p.ClassifyDataset(cmd.Context(), datasetPath)
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
				}
				logger.Info("done", "classified", len(results))

			case imageURL != "":
				p.ClassifyURL(cmd.Context(), imageURL)

			default:
				fmt.Fprintln(out, "Please provide either a dataset path (--dataset) or an image URL (--url).")
				return nil
			}

			if cfg.MetricsFile != "" {
				if err := rec.WriteFile(cfg.MetricsFile); err != nil {
					logger.Warn("metrics", "err", err)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "path to dataset (folder structure)")
	cmd.Flags().StringVar(&imageURL, "url", "", "image URL for classification")
	cmd.Flags().StringVar(&model, "model", "", "model name to use for classification")
	cmd.MarkFlagRequired("model")

	cmd.AddCommand(fetchDatasetCmd(&configPath))
	return cmd
}

func fetchDatasetCmd(configPath *string) *cobra.Command {
	var archiveURL, outDir string

	cmd := &cobra.Command{
		Use:   "fetch-dataset",
		Short: "Download and extract the sample image dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if archiveURL != "" {
				cfg.Dataset.URL = archiveURL
			}
			if outDir != "" {
				cfg.Dataset.Dir = outDir
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			f := dataset.New(fetcher.New(nil, logger), cfg.Dataset,
				dataset.WithOutput(cmd.OutOrStdout()),
				dataset.WithLogger(logger),
			)

			_, err = f.Ensure(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVar(&archiveURL, "url", "", "archive URL (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default from config)")
	return cmd
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return cfg.Logger(w).With("run", uuid.NewString()[:8])
}
