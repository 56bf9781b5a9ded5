// Package staging writes request images to a scratch directory under
// collision-free names and resolves local image paths.
package staging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/platinummonkey/ocrserve/internal/logger"
)

// DefaultDir is the staging directory used when none is configured
const DefaultDir = "./ocr_temp_imgs"

const (
	// handwriting contrast stretch: out = clamp(contrastGain*in + contrastBias)
	contrastGain = 1.5
	contrastBias = 20.0

	handwritingSuffix = "_hw.jpg"
	jpegQuality       = 95
)

var (
	// ErrPathNotFound is returned when a local image path does not exist
	ErrPathNotFound = errors.New("image path does not exist")

	// ErrNoImages is returned when a local path holds no eligible image
	ErrNoImages = errors.New("no eligible images")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".rgb":  true,
	".tif":  true,
	".tiff": true,
	".gif":  true,
}

// Stager owns the staging directory
type Stager struct {
	dir    string
	logger *logger.Logger
}

// Config holds configuration for the Stager
type Config struct {
	Dir    string
	Logger *logger.Logger
}

// New creates a Stager, creating the staging directory if needed
func New(cfg *Config) (*Stager, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", dir, err)
	}

	return &Stager{dir: dir, logger: log}, nil
}

// Dir returns the staging directory
func (s *Stager) Dir() string {
	return s.dir
}

// SaveUpload decodes an uploaded image and stores it as PNG
func (s *Stager) SaveUpload(data []byte) (string, error) {
	img, err := decode(data)
	if err != nil {
		return "", err
	}

	path := s.newPath(".png")
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	s.logger.WithFields("path", path, "bytes", len(data)).Debug("Staged upload")
	return path, nil
}

// PrepareHandwriting writes a contrast-enhanced grayscale copy of the image at
// src into the staging directory.
func (s *Stager) PrepareHandwriting(src string) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open image %s: %w", src, err)
	}
	return s.saveHandwriting(img)
}

// PrepareHandwritingUpload is PrepareHandwriting for uploaded bytes
func (s *Stager) PrepareHandwritingUpload(data []byte) (string, error) {
	img, err := decode(data)
	if err != nil {
		return "", err
	}
	return s.saveHandwriting(img)
}

func (s *Stager) saveHandwriting(img image.Image) (string, error) {
	path := s.newPath(handwritingSuffix)
	if err := imaging.Save(Enhance(img), path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to save handwriting image: %w", err)
	}

	s.logger.WithFields("path", path).Debug("Staged handwriting image")
	return path, nil
}

// Remove deletes a staged file. Paths outside the staging directory are left
// alone.
func (s *Stager) Remove(path string) {
	if path == "" || filepath.Dir(path) != filepath.Clean(s.dir) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithFields("path", path).Warn("Failed to remove staged image")
	}
}

func (s *Stager) newPath(suffix string) string {
	return filepath.Join(s.dir, uuid.NewString()+suffix)
}

// Enhance converts img to grayscale and stretches its contrast
func Enhance(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	return imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: stretch(c.R),
			G: stretch(c.G),
			B: stretch(c.B),
			A: c.A,
		}
	})
}

func stretch(v uint8) uint8 {
	out := contrastGain*float64(v) + contrastBias + 0.5
	switch {
	case out >= 255:
		return 255
	case out <= 0:
		return 0
	default:
		return uint8(out)
	}
}

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// IsImage reports whether name has an eligible image extension
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ListImages resolves a local path to the images it names. A file is returned
// as is when eligible; a directory yields its eligible files in name order.
func ListImages(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		if IsImage(path) {
			return []string{path}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoImages, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		images = append(images, filepath.Join(path, entry.Name()))
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, path)
	}
	return images, nil
}
