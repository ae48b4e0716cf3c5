package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q (want %s or %s)", format, outputText, outputYAML)
}

// render writes v as YAML when --output=yaml, otherwise calls text.
func render(w io.Writer, v any, text func(io.Writer)) error {
	if flagOutput == outputYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	text(w)
	return nil
}

// relTime renders t relative to now, e.g. "3 minutes ago".
func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// parseJSONArg validates an optional JSON command-line argument.
func parseJSONArg(args []string, i int) (json.RawMessage, error) {
	if len(args) <= i {
		return nil, nil
	}
	if !json.Valid([]byte(args[i])) {
		return nil, fmt.Errorf("argument %q is not valid JSON", args[i])
	}
	return json.RawMessage(args[i]), nil
}
