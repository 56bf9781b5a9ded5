// Package layout rebuilds paragraph text from per-line detection geometry.
//
// Printed documents mark a new paragraph with a first-line indent, and a line
// that reaches the right margin continues on the next line. Both margins are
// estimated by clustering line edges, so no layout metadata from the engine
// is needed.
package layout

import (
	"sort"
	"strings"

	"github.com/platinummonkey/ocrserve/internal/langdetect"
	"github.com/platinummonkey/ocrserve/internal/logger"
	"github.com/platinummonkey/ocrserve/internal/ocr"
)

const (
	// DefaultLineHeight is used when there are no detections to average
	DefaultLineHeight = 32.0

	// indentGapFactor scales the average line height into the left-edge cluster gap
	indentGapFactor = 1.5

	// wrapGapFactor scales the average line height into the right-edge cluster gap
	wrapGapFactor = 2.0

	paragraphIndent = "    "
)

// Reconstructor turns document-mode detections into paragraph text
type Reconstructor struct {
	detector langdetect.Detector
	logger   *logger.Logger
}

// Config holds configuration for the Reconstructor
type Config struct {
	Detector langdetect.Detector // default: script-based detector
	Logger   *logger.Logger
}

// New creates a new Reconstructor
func New(cfg *Config) *Reconstructor {
	if cfg == nil {
		cfg = &Config{}
	}

	det := cfg.Detector
	if det == nil {
		det = langdetect.NewScriptDetector()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Reconstructor{
		detector: det,
		logger:   log,
	}
}

// lineMarks records the margin classification of one detection
type lineMarks struct {
	indented bool
	fullLine bool
}

// Reconstruct returns the paragraphs of records joined by newlines. records
// must be in engine emission order.
func (r *Reconstructor) Reconstruct(records []ocr.DetectionRecord) string {
	if len(records) == 0 {
		return ""
	}

	marks := classify(records)

	var paragraphs []string
	var buffer strings.Builder

	flush := func() {
		if buffer.Len() > 0 {
			paragraphs = append(paragraphs, buffer.String())
			buffer.Reset()
		}
	}

	for i, rec := range records {
		text := r.localize(rec.Text)
		m := marks[i]

		switch {
		case m.indented && !m.fullLine:
			// a short indented line is a paragraph of its own
			flush()
			paragraphs = append(paragraphs, paragraphIndent+text)

		case m.indented && m.fullLine:
			flush()
			buffer.WriteString(paragraphIndent + text)

		default:
			if i > 0 && !marks[i-1].fullLine {
				flush()
			}
			buffer.WriteString(text)
		}
	}
	flush()

	return strings.Join(paragraphs, "\n")
}

// localize swaps ASCII punctuation for full-width forms in Chinese text.
// Detection failures leave the text untouched.
func (r *Reconstructor) localize(text string) string {
	lang, err := r.detector.Detect(text)
	if err != nil {
		r.logger.WithFields("text", text, "error", err).Debug("Language detection failed")
		return text
	}
	if langdetect.IsChinese(lang) {
		return ToChinesePunctuation(text)
	}
	return text
}

// classify marks each record as indented (left edge off the baseline margin)
// and/or full (right edge on the baseline margin).
func classify(records []ocr.DetectionRecord) []lineMarks {
	avg := averageHeight(records)
	marks := make([]lineMarks, len(records))

	// left edges ascending; everything outside the dominant cluster is indented
	starts := sortedEdges(records, func(b ocr.Rectangle) int { return b.X }, false)
	baseline := largestCluster(starts, avg*indentGapFactor)
	for i := range marks {
		marks[i].indented = true
	}
	for _, e := range baseline {
		marks[e.index].indented = false
	}

	// right edges descending; the dominant cluster reaches the right margin
	ends := sortedEdges(records, func(b ocr.Rectangle) int { return b.Right() }, true)
	for _, e := range largestCluster(ends, avg*wrapGapFactor) {
		marks[e.index].fullLine = true
	}

	return marks
}

func averageHeight(records []ocr.DetectionRecord) float64 {
	if len(records) == 0 {
		return DefaultLineHeight
	}
	total := 0
	for _, rec := range records {
		total += rec.Box.Height
	}
	return float64(total) / float64(len(records))
}

type edge struct {
	index int
	pos   int
}

func sortedEdges(records []ocr.DetectionRecord, pos func(ocr.Rectangle) int, descending bool) []edge {
	edges := make([]edge, len(records))
	for i, rec := range records {
		edges[i] = edge{index: i, pos: pos(rec.Box)}
	}
	sort.SliceStable(edges, func(a, b int) bool {
		if descending {
			return edges[a].pos > edges[b].pos
		}
		return edges[a].pos < edges[b].pos
	})
	return edges
}

// largestCluster greedily splits sorted edges wherever an edge lies more than
// gap away from the first edge of the current cluster, and returns the
// cluster with the most members. Ties go to the earliest cluster.
func largestCluster(edges []edge, gap float64) []edge {
	if len(edges) == 0 {
		return nil
	}

	var clusters [][]edge
	current := []edge{}
	anchor := edges[0].pos

	for _, e := range edges {
		if distance(e.pos, anchor) > gap {
			clusters = append(clusters, current)
			current = []edge{e}
			anchor = e.pos
			continue
		}
		current = append(current, e)
	}
	clusters = append(clusters, current)

	best := clusters[0]
	for _, c := range clusters[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

func distance(a, b int) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}
