package integration

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// Fake engines emit the same line grammar as the real one.
const (
	engineTwoLines = `#!/bin/sh
printf 'Hello\t0.95\tdet 10 0 200 32\n'
printf 'World\t0.92\tdet 10 40 200 72\n'
printf 'faint\t0.40\tdet 10 80 200 112\n'
echo 'Detection elapse: 0.5s'
echo 'Recognition elapse: 0.2s'
`

	engineIDCard = `#!/bin/sh
printf '姓名张三\t0.99\tdet 0 0 100 30\n'
printf '性别男 民族汉\t0.99\tdet 0 40 100 70\n'
printf '出生1990年1月1日\t0.98\tdet 0 80 100 110\n'
printf '住址北京市\t0.97\tdet 0 120 100 150\n'
printf '公民身份证号码123456\t0.99\tdet 0 160 100 190\n'
`

	// reports whether handwriting tuning reached the engine
	engineEchoMode = `#!/bin/sh
case "$*" in
  *--rec_mode*) printf 'handwriting\t0.9\tdet 0 0 10 10\n' ;;
  *) printf 'standard\t0.9\tdet 0 0 10 10\n' ;;
esac
`

	engineEmpty = `#!/bin/sh
echo 'Detection elapse: 0.1s'
`

	engineAbort = `#!/bin/sh
printf 'partial\t0.9\tdet 0 0 10 10\n'
echo 'Aborted (core dumped)' >&2
exit 134
`

	engineSlow = `#!/bin/sh
exec sleep 30
`
)

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts need a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// writeEngine installs a fake engine script and returns its path
func writeEngine(t *testing.T, script string) string {
	t.Helper()
	requireShell(t)

	path := filepath.Join(t.TempDir(), "fake-ppocr")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake engine: %v", err)
	}
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// writeImages creates a directory of small PNG files
func writeImages(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), pngBytes(t), 0644); err != nil {
			t.Fatalf("Failed to write image: %v", err)
		}
	}
	return dir
}
