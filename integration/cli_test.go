package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildCLI compiles cmd/ocrserve into a temp directory
func buildCLI(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping CLI test in short mode")
	}

	binaryPath := filepath.Join(t.TempDir(), "ocrserve-test")

	cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/ocrserve")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build CLI: %v\nOutput: %s", err, output)
	}

	return binaryPath
}

// isolatedEnv keeps the user's ~/.ocrserve.yaml out of the run
func isolatedEnv(t *testing.T) []string {
	t.Helper()
	return append(os.Environ(), "HOME="+t.TempDir())
}

// TestCLIBuild tests that the CLI binary can be built
func TestCLIBuild(t *testing.T) {
	binaryPath := buildCLI(t)

	info, err := os.Stat(binaryPath)
	if err != nil {
		t.Fatalf("Failed to stat binary: %v", err)
	}

	if info.Mode()&0111 == 0 {
		t.Error("Binary should be executable")
	}
}

// TestCLIVersion tests the version command
func TestCLIVersion(t *testing.T) {
	binaryPath := buildCLI(t)

	output, err := exec.Command(binaryPath, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("Version command failed: %v\nOutput: %s", err, output)
	}

	if !strings.Contains(string(output), "ocrserve version") {
		t.Errorf("Version output should contain 'ocrserve version', got:\n%s", output)
	}
}

// TestCLIHelp tests help output for each command
func TestCLIHelp(t *testing.T) {
	binaryPath := buildCLI(t)

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{"root help", []string{"--help"}, []string{"serve", "recognize", "version", "--engine-binary"}},
		{"serve help", []string{"serve", "--help"}, []string{"--listen-addr", "--pid-file", "--max-upload-bytes"}},
		{"recognize help", []string{"recognize", "--help"}, []string{"--mode", "--output", "--summary", "idcard"}},
		{"version help", []string{"version", "--help"}, []string{"version"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := exec.Command(binaryPath, tt.args...).CombinedOutput()
			if err != nil {
				t.Fatalf("Help command failed: %v\nOutput: %s", err, output)
			}

			for _, want := range tt.contains {
				if !strings.Contains(string(output), want) {
					t.Errorf("Help output should contain %q", want)
				}
			}
		})
	}
}

// TestCLIInvalidCommand tests that unknown commands fail
func TestCLIInvalidCommand(t *testing.T) {
	binaryPath := buildCLI(t)

	output, err := exec.Command(binaryPath, "invalid-command").CombinedOutput()
	if err == nil {
		t.Error("Invalid command should fail")
	}

	if !strings.Contains(string(output), "unknown command") {
		t.Errorf("Expected unknown command error, got:\n%s", output)
	}
}

// TestCLIRecognize runs the recognize command against a fake engine
func TestCLIRecognize(t *testing.T) {
	binaryPath := buildCLI(t)
	engine := writeEngine(t, engineTwoLines)
	images := writeImages(t, "scan.png")

	cmd := exec.Command(binaryPath, "recognize",
		"--engine-binary", engine,
		"--staging-dir", filepath.Join(t.TempDir(), "staging"),
		"--mode", "universal",
		images,
	)
	cmd.Env = isolatedEnv(t)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("recognize failed: %v\nStderr: %s", err, stderr.String())
	}

	var env struct {
		Type   string  `json:"type"`
		Status int     `json:"status"`
		Result []entry `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("stdout is not an envelope: %v\n%s", err, stdout.String())
	}

	if env.Type != "local" || env.Status != 200 {
		t.Errorf("unexpected envelope type=%s status=%d", env.Type, env.Status)
	}
	if len(env.Result) != 1 || string(env.Result[0].Result) != `"Hello\nWorld"` {
		t.Errorf("unexpected entries %+v", env.Result)
	}
}

// TestCLIRecognizeFailures checks the exit status for non-OK envelopes
func TestCLIRecognizeFailures(t *testing.T) {
	binaryPath := buildCLI(t)
	engine := writeEngine(t, engineTwoLines)

	tests := []struct {
		name   string
		mode   string
		path   string
		detail string
	}{
		{"unsupported mode", "foo", writeImages(t, "a.png"), "Unsupported type"},
		{"missing path", "universal", filepath.Join(t.TempDir(), "nope"), "Image path not exist"},
		{"no images", "universal", t.TempDir(), "Can't find images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binaryPath, "recognize",
				"--engine-binary", engine,
				"--staging-dir", filepath.Join(t.TempDir(), "staging"),
				"--mode", tt.mode,
				"--output", "yaml",
				tt.path,
			)
			cmd.Env = isolatedEnv(t)

			output, err := cmd.CombinedOutput()
			if err == nil {
				t.Fatalf("expected non-zero exit, output:\n%s", output)
			}
			if !strings.Contains(string(output), tt.detail) {
				t.Errorf("output should contain %q, got:\n%s", tt.detail, output)
			}
		})
	}
}
