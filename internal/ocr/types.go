// Package ocr holds the detection record model and the engine output parser.
package ocr

import (
	"errors"
	"fmt"
)

// Mode selects how detections are turned into a result
type Mode string

const (
	// ModeUniversal returns one line per detection
	ModeUniversal Mode = "universal"

	// ModeDocument reconstructs paragraphs from line geometry
	ModeDocument Mode = "document"

	// ModeIDCard extracts the fixed set of ID card fields
	ModeIDCard Mode = "idcard"

	// ModeHandwritten uses the handwriting-tuned engine configuration
	ModeHandwritten Mode = "handwritten"
)

// ErrUnsupportedMode is returned by ParseMode for values outside the recognized set
var ErrUnsupportedMode = errors.New("unsupported mode")

// Modes lists every recognized mode
func Modes() []Mode {
	return []Mode{ModeUniversal, ModeDocument, ModeIDCard, ModeHandwritten}
}

// ParseMode validates a raw mode string
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// Rectangle is an axis-aligned box in pixel coordinates
type Rectangle struct {
	// X is the left coordinate (pixels from left edge)
	X int

	// Y is the top coordinate (pixels from top edge)
	Y int

	// Width is the width of the rectangle in pixels
	Width int

	// Height is the height of the rectangle in pixels
	Height int
}

// NewRectangle creates a new Rectangle
func NewRectangle(x, y, width, height int) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// RectangleFromCorners builds a Rectangle from (x1, y1) and (x2, y2)
func RectangleFromCorners(x1, y1, x2, y2 int) Rectangle {
	return NewRectangle(x1, y1, x2-x1, y2-y1)
}

// Right returns the right edge coordinate
func (r Rectangle) Right() int {
	return r.X + r.Width
}

// Bottom returns the bottom edge coordinate
func (r Rectangle) Bottom() int {
	return r.Y + r.Height
}

// DetectionRecord is one recognized text line as emitted by the engine
type DetectionRecord struct {
	// Text is the recognized string
	Text string

	// Confidence is the recognition score in 0..1
	Confidence float64

	// Box is the bounding box of the text line
	Box Rectangle
}

// NewDetectionRecord creates a new DetectionRecord
func NewDetectionRecord(text string, confidence float64, box Rectangle) DetectionRecord {
	return DetectionRecord{
		Text:       text,
		Confidence: confidence,
		Box:        box,
	}
}

// Texts returns the text of every record, in order
func Texts(records []DetectionRecord) []string {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}
	return texts
}
