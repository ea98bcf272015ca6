package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// writeReport renders v in the configured format to the configured
// destination. text renders the human-readable form.
func writeReport(cmd *cobra.Command, out config.OutputConfig, v any, text func(io.Writer) error) (err error) {
	w := cmd.OutOrStdout()
	if out.File != "" {
		f, cerr := os.Create(out.File)
		if cerr != nil {
			return fmt.Errorf("failed to create output file: %w", cerr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}
	return encode(w, out.Format, v, text)
}

func encode(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// describeOutcome is the one-line text form of an outcome.
func describeOutcome(o pipeline.Outcome) string {
	if !o.OK() {
		return fmt.Sprintf("no code found (%s)", o.Reason())
	}
	r := o.Result
	return fmt.Sprintf("%s [%s, %s]", r.Text, r.Format, r.Stage)
}
