package ocr

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/platinummonkey/ocrserve/internal/logger"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinConfidence is the score a detection must exceed to be kept
const DefaultMinConfidence = 0.70

const (
	detectionElapseMarker   = "Detection elapse: "
	recognitionElapseMarker = "Recognition elapse: "
	abortMarker             = "Abort"

	// engine lines can carry long recognized strings
	maxLineBytes = 1 << 20
)

// ParseResult holds everything extracted from one engine output stream
type ParseResult struct {
	// Records are the retained detections, in engine order
	Records []DetectionRecord

	// DetectionElapsed is the engine-reported detection time, if any
	DetectionElapsed *string

	// RecognitionElapsed is the engine-reported recognition time, if any
	RecognitionElapsed *string

	// Aborted is set when the engine reported an abort
	Aborted bool

	// Skipped counts detection lines dropped for malformed fields
	Skipped int
}

// Parser turns raw engine output into detection records
type Parser struct {
	logger        *logger.Logger
	minConfidence float64
}

// ParserConfig holds configuration for the Parser
type ParserConfig struct {
	Logger        *logger.Logger
	MinConfidence float64 // default DefaultMinConfidence
}

// NewParser creates a new Parser
func NewParser(cfg *ParserConfig) *Parser {
	if cfg == nil {
		cfg = &ParserConfig{}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	minConf := cfg.MinConfidence
	if minConf <= 0 {
		minConf = DefaultMinConfidence
	}

	return &Parser{
		logger:        log,
		minConfidence: minConf,
	}
}

// ParseOutput reads the engine stream line by line. Malformed lines are
// skipped; they never fail the whole stream.
func (p *Parser) ParseOutput(r io.Reader) ParseResult {
	res := ParseResult{Records: []DetectionRecord{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) == 3 {
			rec, keep, err := p.parseDetection(fields)
			if err != nil {
				res.Skipped++
				p.logger.WithFields("line", line, "error", err).Debug("Skipping malformed detection line")
				continue
			}
			if keep {
				res.Records = append(res.Records, rec)
			}
			continue
		}

		switch {
		case strings.Contains(line, detectionElapseMarker):
			res.DetectionElapsed = elapsedValue(line, detectionElapseMarker)
		case strings.Contains(line, recognitionElapseMarker):
			res.RecognitionElapsed = elapsedValue(line, recognitionElapseMarker)
		case strings.Contains(line, abortMarker):
			res.Aborted = true
			return res
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.WithError(err).Warn("Engine output truncated")
	}

	return res
}

// parseDetection decodes a text/score/coordinate triple. keep is false for
// well-formed detections at or below the confidence cutoff.
func (p *Parser) parseDetection(fields []string) (DetectionRecord, bool, error) {
	text, scoreField, coordField := fields[0], fields[1], fields[2]

	conf, err := parseConfidence(scoreField)
	if err != nil {
		return DetectionRecord{}, false, err
	}
	if !(conf > p.minConfidence) {
		return DetectionRecord{}, false, nil
	}

	box, err := parseBox(coordField)
	if err != nil {
		return DetectionRecord{}, false, err
	}

	return NewDetectionRecord(norm.NFC.String(text), conf, box), true, nil
}

// parseConfidence reads the trailing token of the score field as a float
func parseConfidence(field string) (float64, error) {
	tokens := strings.Fields(field)
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty score field")
	}

	v, err := strconv.ParseFloat(tokens[len(tokens)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid confidence %q: %w", tokens[len(tokens)-1], err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite confidence %q", tokens[len(tokens)-1])
	}
	return v, nil
}

// parseBox decodes "<label> n0 n1 n2 ... nk" into (n0, n1)-(n2, nk)
func parseBox(field string) (Rectangle, error) {
	tokens := strings.Fields(field)
	if len(tokens) < 5 {
		return Rectangle{}, fmt.Errorf("expected label and at least 4 coordinates, got %d tokens", len(tokens))
	}

	coords := make([]int, 0, len(tokens)-1)
	for _, tok := range tokens[1:] {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return Rectangle{}, fmt.Errorf("invalid coordinate %q: %w", tok, err)
		}
		coords = append(coords, n)
	}

	return RectangleFromCorners(coords[0], coords[1], coords[2], coords[len(coords)-1]), nil
}

// elapsedValue returns the text after marker without its final character (the unit)
func elapsedValue(line, marker string) *string {
	rest := line[strings.Index(line, marker)+len(marker):]
	runes := []rune(rest)
	if len(runes) == 0 {
		return nil
	}
	v := strings.TrimSpace(string(runes[:len(runes)-1]))
	if v == "" {
		return nil
	}
	return &v
}
