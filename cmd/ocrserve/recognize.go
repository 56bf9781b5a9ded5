package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/ocrserve/internal/ocr"
	"github.com/platinummonkey/ocrserve/internal/result"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	recognizeMode    string
	recognizeOutput  string
	recognizeSummary bool
)

// recognizeCmd represents the recognize command
var recognizeCmd = &cobra.Command{
	Use:   "recognize PATH",
	Short: "Recognize a local image or directory once",
	Long: `Run the engine against a local image, or every image in a directory,
and print the response envelope.

The command exits non-zero when the envelope status is not 200. Per-image
failures inside a directory batch are reported in their entries.

Examples:
  # Plain text from one image
  ocrserve recognize --mode universal scan.png

  # Paragraphs from every page in a directory, as YAML
  ocrserve recognize --mode document --output yaml ./pages

  # ID card fields with a batch summary on stderr
  ocrserve recognize --mode idcard --summary ./cards`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	modes := make([]string, 0, len(ocr.Modes()))
	for _, m := range ocr.Modes() {
		modes = append(modes, string(m))
	}

	recognizeCmd.Flags().StringVarP(&recognizeMode, "mode", "m", string(ocr.ModeUniversal), "recognition mode ("+strings.Join(modes, ", ")+")")
	recognizeCmd.Flags().StringVarP(&recognizeOutput, "output", "o", "json", "output format (json, yaml)")
	recognizeCmd.Flags().BoolVar(&recognizeSummary, "summary", false, "print a batch summary to stderr")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}

	env := svc.RecognizeLocal(cmd.Context(), recognizeMode, args[0])

	if err := writeEnvelope(cmd.OutOrStdout(), env, recognizeOutput); err != nil {
		return err
	}

	if recognizeSummary {
		if entries, ok := env.Result.([]result.Entry); ok {
			fmt.Fprint(cmd.ErrOrStderr(), (&result.Batch{Entries: entries}).Summary())
		}
	}

	if !env.Status.IsOK() {
		return fmt.Errorf("recognition failed: %s (%d)", env.Detail, env.Status)
	}
	return nil
}

// writeEnvelope renders env as JSON or YAML
func writeEnvelope(w io.Writer, env *result.Envelope, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format %q, must be json or yaml", format)
	}
	return nil
}
