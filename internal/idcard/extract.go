// Package idcard extracts the fixed field set printed on a resident ID card.
package idcard

import (
	"regexp"
	"strings"

	"github.com/platinummonkey/ocrserve/internal/ocr"
)

// Fields holds the extracted values; nil means the anchors were not found
type Fields struct {
	Name     *string `json:"姓名" yaml:"姓名"`
	Gender   *string `json:"性别" yaml:"性别"`
	Nation   *string `json:"民族" yaml:"民族"`
	Birth    *string `json:"出生" yaml:"出生"`
	Address  *string `json:"住址" yaml:"住址"`
	IDNumber *string `json:"公民身份证号码" yaml:"公民身份证号码"`
}

// Anchors are matched leftmost-first and capture up to the LAST occurrence of
// the closing anchor (greedy).
var (
	reName         = regexp.MustCompile(`姓名(.*)性别`)
	reNameFallback = regexp.MustCompile(`(.*)姓名`)
	reNation       = regexp.MustCompile(`民族(.*)出生`)
	reBirth        = regexp.MustCompile(`出生(.*)日`)
	reAddress      = regexp.MustCompile(`住址(.*)公民`)
	reIDNumber     = regexp.MustCompile(`号码([0-9xX]*)`)
)

const genderAnchor = "性别"

// Extract concatenates the detection texts and pulls out the card fields
func Extract(records []ocr.DetectionRecord) Fields {
	return ExtractText(strings.Join(ocr.Texts(records), ""))
}

// ExtractText runs the field patterns over already concatenated card text.
// Spaces are removed first.
func ExtractText(text string) Fields {
	text = strings.ReplaceAll(text, " ", "")

	var f Fields

	if m := reName.FindStringSubmatch(text); m != nil && m[1] != "" {
		f.Name = ptr(m[1])
	} else if m := reNameFallback.FindStringSubmatch(text); m != nil {
		f.Name = ptr(m[1])
	}

	if idx := strings.Index(text, genderAnchor); idx != -1 {
		if rest := []rune(text[idx+len(genderAnchor):]); len(rest) > 0 {
			f.Gender = ptr(string(rest[0]))
		}
	}

	f.Nation = submatch(reNation, text)

	if m := reBirth.FindStringSubmatch(text); m != nil {
		f.Birth = ptr(m[1] + "日")
	}

	f.Address = submatch(reAddress, text)
	f.IDNumber = submatch(reIDNumber, text)

	return f
}

func submatch(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ptr(m[1])
}

func ptr(s string) *string {
	return &s
}
