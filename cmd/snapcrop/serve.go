package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jesssullivan/snapcrop/internal/catalog"
	"github.com/Jesssullivan/snapcrop/internal/logging"
	"github.com/Jesssullivan/snapcrop/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve OUTPUT_PATH",
		Short: "Serve an output directory over a read-only HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8420", "Listen address")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	outDir := args[0]

	logger, closeLog, err := logging.New(logging.Options{
		Console: cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		Path:    cfg.LogPath,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", outDir)
	}

	var journal *catalog.DB
	if cfg.CatalogPath != "" {
		journal, err = catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           server.New(outDir, journal, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info().Str("addr", ln.Addr().String()).Str("dir", outDir).Msgf("snapcrop %s serving", version)

	return serve(ctx, srv, ln, logger)
}

// shutdownTimeout bounds how long in-flight requests may finish.
var shutdownTimeout = 5 * time.Second

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server: shutdown")
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
