// Package engine invokes the external text detection/recognition engine under
// a wall-clock deadline and classifies the outcome.
package engine

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/platinummonkey/ocrserve/internal/logger"
	"github.com/platinummonkey/ocrserve/internal/ocr"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultBinary is the engine executable looked up on PATH
	DefaultBinary = "ppocr"

	// DefaultSubcommand selects the full detection+recognition pipeline
	DefaultSubcommand = "system"

	// DefaultTimeout bounds one invocation, including the wait for a slot
	DefaultTimeout = 10 * time.Second

	// abortedMarker in stderr means the engine died from an abort signal
	abortedMarker = "Aborted"
)

// HandwritingConfig tunes the engine for handwritten input
type HandwritingConfig struct {
	UnclipRatio  float64
	RecModelDir  string
	CharListFile string
	RecMode      int
}

// DefaultHandwriting returns the stock handwriting tuning
func DefaultHandwriting() HandwritingConfig {
	return HandwritingConfig{
		UnclipRatio:  2.2,
		RecModelDir:  "./inference/hwrec/",
		CharListFile: "./hw_chars.txt",
		RecMode:      1,
	}
}

// Config holds configuration for the Gateway
type Config struct {
	Logger        *logger.Logger
	Runner        Runner      // default: real process execution
	Parser        *ocr.Parser // default: ocr.NewParser with MinConfidence
	Binary        string
	Subcommand    string
	Timeout       time.Duration
	MaxConcurrent int     // concurrent engine processes (default: NumCPU)
	MinConfidence float64 // used when Parser is nil
	Handwriting   HandwritingConfig
}

// Gateway runs the engine for one image at a time per caller, with a shared
// cap on concurrent processes.
type Gateway struct {
	logger      *logger.Logger
	runner      Runner
	parser      *ocr.Parser
	binary      string
	subcommand  string
	timeout     time.Duration
	handwriting HandwritingConfig
	slots       *semaphore.Weighted
}

// New creates a new Gateway
func New(cfg *Config) *Gateway {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	runner := cfg.Runner
	if runner == nil {
		runner = execRunner{logger: log, waitDelay: time.Second}
	}

	parser := cfg.Parser
	if parser == nil {
		parser = ocr.NewParser(&ocr.ParserConfig{Logger: log, MinConfidence: cfg.MinConfidence})
	}

	binary := cfg.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	subcommand := cfg.Subcommand
	if subcommand == "" {
		subcommand = DefaultSubcommand
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}

	hw := cfg.Handwriting
	if hw == (HandwritingConfig{}) {
		hw = DefaultHandwriting()
	}

	return &Gateway{
		logger:      log,
		runner:      runner,
		parser:      parser,
		binary:      binary,
		subcommand:  subcommand,
		timeout:     timeout,
		handwriting: hw,
		slots:       semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Args returns the engine argument vector for an image in the given mode
func (g *Gateway) Args(imagePath string, mode ocr.Mode) []string {
	args := []string{g.subcommand, "--image_dir", imagePath}
	if mode == ocr.ModeHandwritten {
		args = append(args,
			"--det_db_unclip_ratio", strconv.FormatFloat(g.handwriting.UnclipRatio, 'f', -1, 64),
			"--rec_model_dir", g.handwriting.RecModelDir,
			"--char_list_file", g.handwriting.CharListFile,
			"--rec_mode", strconv.Itoa(g.handwriting.RecMode),
		)
	}
	return args
}

// Invoke runs the engine against imagePath. It never returns nil; failures
// are reported through the outcome's Failure field.
func (g *Gateway) Invoke(ctx context.Context, imagePath string, mode ocr.Mode) *Outcome {
	start := time.Now()
	log := g.logger.WithFields("image_path", imagePath, "mode", string(mode))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.slots.Acquire(ctx, 1); err != nil {
		log.WithFields("timeout", g.timeout).Warn("No engine slot available before deadline")
		return failed(FailureTimeout, start)
	}
	defer g.slots.Release(1)

	stdout, stderr, err := g.runner.Run(ctx, g.binary, g.Args(imagePath, mode)...)
	if ctx.Err() != nil {
		log.WithFields("timeout", g.timeout, "duration", time.Since(start)).Warn("Engine invocation timed out")
		return failed(FailureTimeout, start)
	}

	parsed := g.parser.ParseOutput(bytes.NewReader(stdout))

	switch {
	case bytes.Contains(stderr, []byte(abortedMarker)), parsed.Aborted:
		log.Warn("Engine aborted")
		return failed(FailureAborted, start)
	case err != nil:
		log.WithError(err).Warn("Engine exited abnormally")
		return failed(FailureAborted, start)
	}

	log.WithFields(
		"records", len(parsed.Records),
		"skipped_lines", parsed.Skipped,
		"duration", time.Since(start),
	).Debug("Engine invocation succeeded")

	return &Outcome{
		Succeeded:          true,
		Records:            parsed.Records,
		DetectionElapsed:   parsed.DetectionElapsed,
		RecognitionElapsed: parsed.RecognitionElapsed,
		Failure:            FailureNone,
		Duration:           time.Since(start),
	}
}
