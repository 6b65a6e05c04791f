// snapcrop crops and resizes a batch of images to the nearest-aspect
// resolution from a compact resolution spec, writing each result under the
// hash of its source bytes so repeated runs skip finished work.
//
// Usage:
//
//	find photos -name '*.jpg' | snapcrop out/ --res '[1920x1080],1024'
//	snapcrop out/ --res 256:1024:128 -i paths.txt --format webp
//	snapcrop serve out/ --catalog journal.db
//
// Input paths are read one per line from --input-file or stdin.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jesssullivan/snapcrop/internal/catalog"
	"github.com/Jesssullivan/snapcrop/internal/config"
	"github.com/Jesssullivan/snapcrop/internal/ingest"
	"github.com/Jesssullivan/snapcrop/internal/logging"
	"github.com/Jesssullivan/snapcrop/internal/metrics"
	"github.com/Jesssullivan/snapcrop/internal/optimize"
	"github.com/Jesssullivan/snapcrop/internal/resolution"
	"github.com/Jesssullivan/snapcrop/internal/store"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errFailedItems makes the exit status non-zero after the summary has
// already been printed.
var errFailedItems = errors.New("some items failed")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapcrop OUTPUT_PATH",
		Short: "Crop and resize images to the nearest resolution in a spec",
		Long: `Reads image paths from stdin (or --input-file), picks for each image the
candidate resolution with the closest aspect ratio, scales it to cover the
candidate without upscaling, center-crops and writes <sha256>.<format> into
OUTPUT_PATH. Images already present in OUTPUT_PATH are skipped.

Resolution spec:
  1920x1080         fixed size
  512               square 512x512
  256:1024:128      squares 256, 384, ... 1024 (step defaults to 1)
  512:1024:256x768  widths 512..1024 at height 768 (either side may be a range)
  [512x768]         512x768 and 768x512
  a,b,c             union of terms`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrop,
	}

	f := cmd.PersistentFlags()
	f.String("config", "", "YAML config file")
	f.String("catalog", "", "SQLite journal of per-item outcomes")
	f.StringP("log", "l", "", "Also write JSON logs to this file")
	f.BoolP("verbose", "v", false, "Log every item")

	cmd.Flags().StringP("res", "r", "", "Resolution spec (required)")
	cmd.Flags().StringP("input-file", "i", "", "Read input paths from this file instead of stdin")
	cmd.Flags().StringP("format", "f", string(optimize.PNG), "Output format: png, jpg, jpeg, webp, gif, bmp, tif, tiff")
	cmd.Flags().Int("quality", optimize.DefaultQuality, "JPEG/WebP quality (1-100)")
	cmd.Flags().IntP("workers", "j", 0, "Parallel workers (0 = number of CPUs)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus textfile metrics here after the batch")
	cmd.Flags().Bool("progress", true, "Draw a progress line on stderr (off with --verbose)")

	cmd.AddCommand(newServeCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFailedItems) {
			fmt.Fprintf(os.Stderr, "snapcrop: %v\n", err)
		}
		os.Exit(1)
	}
}

// consoleSinks wraps w in one lock shared by the log console and the
// progress line. progress is nil when it is disabled or when per-item debug
// events would keep breaking it up.
func consoleSinks(w io.Writer, cfg *config.Config) (console, progress io.Writer) {
	console = zerolog.SyncWriter(w)
	if cfg.Progress && !cfg.Verbose {
		progress = console
	}
	return console, progress
}

// loadConfig applies defaults, the config file, the environment and then
// any flag set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("res") {
		cfg.Resolutions, _ = flags.GetString("res")
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("quality") {
		cfg.Quality, _ = flags.GetInt("quality")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("log") {
		cfg.LogPath, _ = flags.GetString("log")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath, _ = flags.GetString("catalog")
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile, _ = flags.GetString("metrics-file")
	}
	if flags.Changed("progress") {
		cfg.Progress, _ = flags.GetBool("progress")
	}
	return cfg, nil
}

func runCrop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, _ := optimize.ParseFormat(cfg.Format)

	console, progress := consoleSinks(cmd.ErrOrStderr(), cfg)
	logger, closeLog, err := logging.New(logging.Options{
		Console: console,
		Verbose: cfg.Verbose,
		Path:    cfg.LogPath,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	// Everything that can fail for the whole batch fails before any input
	// is read.
	set, err := resolution.ParseSet(cfg.Resolutions)
	if err != nil {
		return err
	}
	st, err := store.Open(args[0], format.Ext())
	if err != nil {
		return err
	}

	var src io.Reader = cmd.InOrStdin()
	if in, _ := cmd.Flags().GetString("input-file"); in != "" {
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()
		src = f
	}

	opts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.CatalogPath != "" {
		db, err := catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, ingest.WithCatalog(db))
	}
	var m *metrics.Batch
	if cfg.MetricsFile != "" {
		m = metrics.New()
		opts = append(opts, ingest.WithMetrics(m))
	}
	if progress != nil {
		opts = append(opts, ingest.WithProgress(progress))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ing := ingest.New(st, set, ingest.Config{
		Format:  format,
		Quality: cfg.Quality,
		Workers: cfg.Workers,
	}, opts...)
	sum, runErr := ing.Run(ctx, src)

	p := message.NewPrinter(language.English)
	p.Fprintf(cmd.OutOrStdout(), "%d written, %d skipped, %d failed\n", sum.Written, sum.Skipped, sum.Failed)

	if m != nil {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("metrics: write failed")
		}
	}

	if runErr != nil {
		return runErr
	}
	if !sum.OK() {
		return errFailedItems
	}
	return nil
}
