package ocr

import "strings"

// PlainText joins detection texts one per line, unmodified
func PlainText(records []DetectionRecord) string {
	return strings.Join(Texts(records), "\n")
}
