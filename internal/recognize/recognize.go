// Package recognize runs a recognition request end to end: it stages the
// image, invokes the engine, composes the mode-specific payload and builds the
// response envelope.
package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/platinummonkey/ocrserve/internal/engine"
	"github.com/platinummonkey/ocrserve/internal/idcard"
	"github.com/platinummonkey/ocrserve/internal/layout"
	"github.com/platinummonkey/ocrserve/internal/logger"
	"github.com/platinummonkey/ocrserve/internal/ocr"
	"github.com/platinummonkey/ocrserve/internal/result"
	"github.com/platinummonkey/ocrserve/internal/staging"
	"golang.org/x/sync/errgroup"
)

// Invoker runs the engine for one image
type Invoker interface {
	Invoke(ctx context.Context, imagePath string, mode ocr.Mode) *engine.Outcome
}

// Reconstructor rebuilds document paragraphs
type Reconstructor interface {
	Reconstruct(records []ocr.DetectionRecord) string
}

// Service assembles recognition responses
type Service struct {
	logger        *logger.Logger
	invoker       Invoker
	stager        *staging.Stager
	reconstructor Reconstructor
	parallelism   int
	now           func() time.Time
}

// Config holds configuration for the Service
type Config struct {
	Logger        *logger.Logger
	Invoker       Invoker
	Stager        *staging.Stager
	Reconstructor Reconstructor // default: layout.New
	Parallelism   int           // images of a local batch in flight (default: NumCPU)
}

// New creates a new Service
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.Stager == nil {
		return nil, fmt.Errorf("stager is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	rec := cfg.Reconstructor
	if rec == nil {
		rec = layout.New(&layout.Config{Logger: log})
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	return &Service{
		logger:        log,
		invoker:       cfg.Invoker,
		stager:        cfg.Stager,
		reconstructor: rec,
		parallelism:   parallelism,
		now:           time.Now,
	}, nil
}

// Compose turns detections into the payload for mode: a string for
// universal, handwritten and document, idcard.Fields for idcard.
func (s *Service) Compose(mode ocr.Mode, records []ocr.DetectionRecord) any {
	switch mode {
	case ocr.ModeDocument:
		return s.reconstructor.Reconstruct(records)
	case ocr.ModeIDCard:
		return idcard.Extract(records)
	default:
		return ocr.PlainText(records)
	}
}

// RecognizeUpload handles a single uploaded image. Any failure ends the
// request with the matching status. The error return is reserved for uploads
// that cannot be decoded or staged.
func (s *Service) RecognizeUpload(ctx context.Context, rawMode string, data []byte) (*result.Envelope, error) {
	env := result.NewEnvelope(result.TypeOnline, s.now())
	log := s.logger.WithOperation("online").WithFields("mode", rawMode)

	mode, err := ocr.ParseMode(rawMode)
	if err != nil {
		return s.finish(log, env.Finish(result.StatusUnsupportedMode, nil, s.now())), nil
	}

	var path string
	if mode == ocr.ModeHandwritten {
		path, err = s.stager.PrepareHandwritingUpload(data)
	} else {
		path, err = s.stager.SaveUpload(data)
	}
	if err != nil {
		log.WithError(err).Warn("Failed to stage upload")
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	defer s.stager.Remove(path)

	out := s.invoker.Invoke(ctx, path, mode)
	status := statusFor(out)
	if !status.IsOK() {
		return s.finish(log, env.Finish(status, nil, s.now())), nil
	}

	env.Finish(status, s.Compose(mode, out.Records), s.now())
	env.SetTimings(out.DetectionElapsed, out.RecognitionElapsed)
	return s.finish(log, env), nil
}

// RecognizeLocal handles a server-side file or directory. Each image gets its
// own entry and status; a failing image never stops the rest of the batch.
func (s *Service) RecognizeLocal(ctx context.Context, rawMode, path string) *result.Envelope {
	env := result.NewEnvelope(result.TypeLocal, s.now())
	log := s.logger.WithOperation("local").WithFields("mode", rawMode, "image_path", path)

	mode, err := ocr.ParseMode(rawMode)
	if err != nil {
		return s.finish(log, env.Finish(result.StatusUnsupportedMode, nil, s.now()))
	}

	images, err := staging.ListImages(path)
	switch {
	case errors.Is(err, staging.ErrNoImages):
		return s.finish(log, env.Finish(result.StatusNoImages, nil, s.now()))
	case err != nil:
		if !errors.Is(err, staging.ErrPathNotFound) {
			log.WithError(err).Warn("Failed to resolve image path")
		}
		return s.finish(log, env.Finish(result.StatusPathNotFound, nil, s.now()))
	}

	start := time.Now()
	batch := result.NewBatch(len(images))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, img := range images {
		g.Go(func() error {
			batch.Set(i, s.recognizeImage(ctx, mode, img))
			return nil
		})
	}
	_ = g.Wait()
	batch.Duration = time.Since(start)

	log.WithFields(
		"images", len(images),
		"successful", batch.SuccessCount(),
		"failed", batch.FailureCount(),
		"duration", batch.Duration,
	).Info("Local batch completed")

	return s.finish(log, env.Finish(result.StatusOK, batch.Entries, s.now()))
}

func (s *Service) recognizeImage(ctx context.Context, mode ocr.Mode, imagePath string) result.Entry {
	enginePath := imagePath
	if mode == ocr.ModeHandwritten {
		staged, err := s.stager.PrepareHandwriting(imagePath)
		if err != nil {
			s.logger.WithError(err).WithFields("image_path", imagePath).Warn("Handwriting preprocessing failed")
			return result.NewEntry(imagePath, string(mode), result.StatusExecError, nil)
		}
		defer s.stager.Remove(staged)
		enginePath = staged
	}

	out := s.invoker.Invoke(ctx, enginePath, mode)
	status := statusFor(out)

	var payload any
	if status.IsOK() {
		payload = s.Compose(mode, out.Records)
	}

	entry := result.NewEntry(imagePath, string(mode), status, payload)
	if out.Succeeded {
		entry.DetTime = out.DetectionElapsed
		entry.RecTime = out.RecognitionElapsed
	}
	return entry
}

// statusFor maps an engine outcome onto the status taxonomy
func statusFor(out *engine.Outcome) result.Status {
	switch {
	case out.Failure == engine.FailureTimeout:
		return result.StatusTimeout
	case !out.Succeeded:
		return result.StatusExecError
	case len(out.Records) == 0:
		return result.StatusEmptyResult
	default:
		return result.StatusOK
	}
}

// finish writes the complete envelope to the log and returns it
func (s *Service) finish(log *logger.Logger, env *result.Envelope) *result.Envelope {
	data, err := json.Marshal(env)
	if err != nil {
		log.WithError(err).Error("Failed to encode envelope for logging")
		return env
	}

	log = log.WithFields("status", int(env.Status), "envelope", string(data))
	if env.Status.IsOK() {
		log.Info("Recognition response")
	} else {
		log.Warn("Recognition failed")
	}
	return env
}
