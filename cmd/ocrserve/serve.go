package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/ocrserve/internal/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recognition HTTP server",
	Long: `Run ocrserve as a long-running HTTP server.

Endpoints:
  GET  /                                   greeting
  POST /online/?ocr_type=MODE              multipart upload in field image_bytes
  POST /local/?ocr_type=MODE&image_path=P  file or directory on the server
  GET  /health, /ready, /status            monitoring

Every recognition response is an envelope whose "status" field carries the
outcome (200 OK, 401 unsupported type, 402 timeout, 403 engine error,
501 missing path, 502 no images, 503 no text).

Examples:
  # Listen on the default :8000
  ocrserve serve

  # Custom address, PID file and JSON logs rotated in ./ocr.log
  ocrserve serve --listen-addr 127.0.0.1:9000 --pid-file /var/run/ocrserve.pid \
    --log-format json --log-file ocr.log`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen-addr", daemon.DefaultAddr, "HTTP listen address")
	serveCmd.Flags().String("pid-file", "", "PID file path")
	serveCmd.Flags().Int64("max-upload-bytes", daemon.DefaultMaxUploadBytes, "maximum upload size in bytes")

	_ = viper.BindPFlag("listen-addr", serveCmd.Flags().Lookup("listen-addr"))
	_ = viper.BindPFlag("pid-file", serveCmd.Flags().Lookup("pid-file"))
	_ = viper.BindPFlag("max-upload-bytes", serveCmd.Flags().Lookup("max-upload-bytes"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.WithFields(
		"addr", cfg.ListenAddr,
		"engine", cfg.Engine.Binary,
		"timeout", cfg.Engine.Timeout,
		"staging_dir", cfg.StagingDir,
	).Info("Starting server")

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}

	d, err := daemon.New(&daemon.Config{
		Recognizer:     svc,
		Logger:         log,
		Addr:           cfg.ListenAddr,
		PIDFile:        cfg.PIDFile,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	// Run daemon (blocks until shutdown signal)
	if err := d.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon error: %w", err)
	}

	log.Info("Server shutdown complete")
	return nil
}
