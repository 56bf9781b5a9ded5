package ocr

import (
	"strings"
	"testing"
)

func TestParseOutput_Detections(t *testing.T) {
	stream := strings.Join([]string{
		"Hello\tscore: 0.95\tdet 10 0 200 32",
		"",
		"World\tscore: 0.92\tdet 10 40 200 72",
	}, "\n")

	res := NewParser(nil).ParseOutput(strings.NewReader(stream))

	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}

	first := res.Records[0]
	if first.Text != "Hello" {
		t.Errorf("expected text Hello, got %q", first.Text)
	}
	if first.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", first.Confidence)
	}
	if first.Box.X != 10 || first.Box.Right() != 200 || first.Box.Height != 32 {
		t.Errorf("unexpected box %+v", first.Box)
	}
	if res.Aborted {
		t.Error("stream should not be marked aborted")
	}
}

func TestParseOutput_ConfidenceCutoff(t *testing.T) {
	tests := []struct {
		name  string
		score string
		kept  bool
	}{
		{"above", "0.71", true},
		{"boundary", "0.70", false},
		{"boundary long form", "0.7000", false},
		{"below", "0.5", false},
		{"one", "1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := "text\tscore " + tt.score + "\tdet 0 0 10 10"
			res := NewParser(nil).ParseOutput(strings.NewReader(line))

			if got := len(res.Records) == 1; got != tt.kept {
				t.Errorf("score %s kept = %v, want %v", tt.score, got, tt.kept)
			}
			if res.Skipped != 0 {
				t.Errorf("low-confidence lines must not count as skipped, got %d", res.Skipped)
			}
		})
	}
}

func TestParseOutput_CustomThreshold(t *testing.T) {
	p := NewParser(&ParserConfig{MinConfidence: 0.9})
	res := p.ParseOutput(strings.NewReader("a\t0.85\tdet 0 0 10 10\nb\t0.95\tdet 0 0 10 10"))

	if len(res.Records) != 1 || res.Records[0].Text != "b" {
		t.Errorf("expected only record b, got %+v", res.Records)
	}
}

func TestParseOutput_MalformedLinesSkipped(t *testing.T) {
	stream := strings.Join([]string{
		"evil\t__import__('os')\tdet 0 0 10 10",
		"nan\tNaN\tdet 0 0 10 10",
		"inf\t+Inf\tdet 0 0 10 10",
		"short\t0.9\tdet 0 0 10",
		"badcoord\t0.9\tdet 0 x 10 10",
		"empty\t \tdet 0 0 10 10",
		"ok\t0.9\tdet 1 2 3 4",
	}, "\n")

	res := NewParser(nil).ParseOutput(strings.NewReader(stream))

	if len(res.Records) != 1 || res.Records[0].Text != "ok" {
		t.Fatalf("expected only record ok, got %+v", res.Records)
	}
	if res.Skipped != 6 {
		t.Errorf("expected 6 skipped lines, got %d", res.Skipped)
	}
}

func TestParseOutput_QuadCoordinates(t *testing.T) {
	// four corner points: the box spans the first x/y, the second x and the last y
	line := "quad\t0.9\tdet 10 20 110 22 108 60 12 58"
	res := NewParser(nil).ParseOutput(strings.NewReader(line))

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	box := res.Records[0].Box
	if box.X != 10 || box.Y != 20 || box.Right() != 110 || box.Bottom() != 58 {
		t.Errorf("unexpected box %+v", box)
	}
	if box.Height != 38 {
		t.Errorf("expected height 38, got %d", box.Height)
	}
}

func TestParseOutput_Diagnostics(t *testing.T) {
	stream := strings.Join([]string{
		"Detection elapse: 123.4s",
		"a\t0.9\tdet 0 0 10 10",
		"Recognition elapse: 56.7s",
	}, "\n")

	res := NewParser(nil).ParseOutput(strings.NewReader(stream))

	if res.DetectionElapsed == nil || *res.DetectionElapsed != "123.4" {
		t.Errorf("unexpected detection elapsed %v", res.DetectionElapsed)
	}
	if res.RecognitionElapsed == nil || *res.RecognitionElapsed != "56.7" {
		t.Errorf("unexpected recognition elapsed %v", res.RecognitionElapsed)
	}
	if len(res.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(res.Records))
	}
}

func TestParseOutput_AbortStopsParsing(t *testing.T) {
	stream := strings.Join([]string{
		"a\t0.9\tdet 0 0 10 10",
		"Aborted (core dumped)",
		"b\t0.9\tdet 0 0 10 10",
		"Detection elapse: 1.0s",
	}, "\n")

	res := NewParser(nil).ParseOutput(strings.NewReader(stream))

	if !res.Aborted {
		t.Fatal("expected stream to be marked aborted")
	}
	if len(res.Records) != 1 {
		t.Errorf("expected parsing to stop after abort, got %d records", len(res.Records))
	}
	if res.DetectionElapsed != nil {
		t.Error("lines after abort must not be parsed")
	}
}

func TestParseOutput_Empty(t *testing.T) {
	res := NewParser(nil).ParseOutput(strings.NewReader(""))

	if res.Records == nil {
		t.Error("Records should be initialized")
	}
	if len(res.Records) != 0 || res.Aborted {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestParseOutput_NormalizesText(t *testing.T) {
	// "e" + combining acute accent composes to a single code point
	res := NewParser(nil).ParseOutput(strings.NewReader("cafe\u0301\t0.9\tdet 0 0 10 10"))

	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	if res.Records[0].Text != "caf\u00e9" {
		t.Errorf("expected NFC text, got %q", res.Records[0].Text)
	}
}
