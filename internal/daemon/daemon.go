// Package daemon serves recognition requests over HTTP until shut down.
package daemon

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

	"github.com/platinummonkey/ocrserve/internal/logger"
	"github.com/platinummonkey/ocrserve/internal/result"
)

const (
	// DefaultAddr is the listen address when none is configured
	DefaultAddr = ":8000"

	// DefaultMaxUploadBytes caps the multipart body of an online request
	DefaultMaxUploadBytes = 32 << 20

	shutdownTimeout = 15 * time.Second
)

// Recognizer handles recognition requests
type Recognizer interface {
	RecognizeUpload(ctx context.Context, mode string, data []byte) (*result.Envelope, error)
	RecognizeLocal(ctx context.Context, mode, path string) *result.Envelope
}

// Daemon runs the recognition HTTP server
type Daemon struct {
	recognizer     Recognizer
	logger         *logger.Logger
	addr           string
	pidFile        string
	maxUploadBytes int64
	httpServer     *http.Server
	statusTracker  *StatusTracker
}

// Config holds configuration for the daemon
type Config struct {
	Recognizer     Recognizer
	Logger         *logger.Logger
	Addr           string // Listen address (default: ":8000")
	PIDFile        string // Optional PID file path
	MaxUploadBytes int64  // Upload size limit (default: 32 MiB)
}

// New creates a new daemon instance
func New(cfg *Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	return &Daemon{
		recognizer:     cfg.Recognizer,
		logger:         log,
		addr:           addr,
		pidFile:        cfg.PIDFile,
		maxUploadBytes: maxUpload,
		statusTracker:  NewStatusTracker(),
	}, nil
}

// Run starts the server and blocks until ctx is canceled or a shutdown
// signal is received. In-flight requests are given time to finish.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.WithFields("addr", d.addr).Info("Starting daemon")

	if d.pidFile != "" {
		if err := d.writePIDFile(); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer d.removePIDFile()
	}

	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.httpServer = &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		d.logger.WithFields("addr", ln.Addr().String()).Info("HTTP server listening")
		if err := d.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-ctx.Done():
		d.logger.Info("Context canceled, shutting down")
		runErr = ctx.Err()

	case sig := <-sigChan:
		d.logger.WithFields("signal", sig.String()).Info("Received shutdown signal")

	case err := <-serveErr:
		d.logger.WithError(err).Error("HTTP server failed")
		return fmt.Errorf("http server failed: %w", err)
	}

	d.stopServer()
	return runErr
}

// stopServer drains in-flight requests, bounded by shutdownTimeout
func (d *Daemon) stopServer() {
	if d.httpServer == nil {
		return
	}

	d.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.httpServer.Shutdown(ctx); err != nil {
		d.logger.WithFields("error", err).Warn("Failed to shutdown HTTP server gracefully")
	} else {
		d.logger.Info("HTTP server stopped")
	}
}

// Handler returns the HTTP routes served by the daemon
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", d.handleRoot)
	mux.HandleFunc("/online/", d.handleOnline)
	mux.HandleFunc("/local/", d.handleLocal)

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	mux.HandleFunc("/status", d.handleStatus)

	return mux
}

// writePIDFile writes the current process ID to the configured PID file
func (d *Daemon) writePIDFile() error {
	pid := os.Getpid()
	content := fmt.Sprintf("%d\n", pid)

	if err := os.WriteFile(d.pidFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.WithFields("pid", pid, "file", d.pidFile).Info("Wrote PID file")
	return nil
}

// removePIDFile removes the PID file
func (d *Daemon) removePIDFile() {
	if d.pidFile == "" {
		return
	}

	if err := os.Remove(d.pidFile); err != nil {
		d.logger.WithFields("file", d.pidFile, "error", err).
			Warn("Failed to remove PID file")
	} else {
		d.logger.WithFields("file", d.pidFile).Info("Removed PID file")
	}
}
