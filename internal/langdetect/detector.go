// Package langdetect classifies short text fragments by writing system.
package langdetect

import (
	"errors"

	"github.com/go-text/typesetting/language"
)

// ErrNoFeatures is returned when text carries no script-specific characters
// (digits, punctuation and whitespace only).
var ErrNoFeatures = errors.New("no features in text")

// Detector guesses the language of a text fragment. Implementations may fail;
// callers treat a failure as "unknown" and carry on.
type Detector interface {
	Detect(text string) (language.Language, error)
}

// Chinese is the tag returned for Han-dominant text
const Chinese = language.Language("zh-cn")

// IsChinese reports whether lang is any Chinese variant
func IsChinese(lang language.Language) bool {
	return lang.Primary() == "zh"
}

// ScriptDetector picks the dominant Unicode script of the text
type ScriptDetector struct{}

// NewScriptDetector creates a new ScriptDetector
func NewScriptDetector() *ScriptDetector {
	return &ScriptDetector{}
}

// Detect implements Detector
func (ScriptDetector) Detect(text string) (language.Language, error) {
	counts := make(map[language.Script]int)
	var best language.Script
	bestCount := 0

	for _, r := range text {
		script := language.LookupScript(r)
		if !script.Strong() || script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > bestCount {
			bestCount = counts[script]
			best = script
		}
	}

	if bestCount == 0 {
		return "", ErrNoFeatures
	}

	kana := counts[language.Hiragana] + counts[language.Katakana]
	switch {
	case best == language.Han && kana > 0, best == language.Hiragana, best == language.Katakana:
		return language.Language("ja"), nil
	case best == language.Han:
		return Chinese, nil
	case best == language.Hangul:
		return language.Language("ko"), nil
	default:
		return language.NewLanguage("und-" + best.String()), nil
	}
}
