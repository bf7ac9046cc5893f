package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type format string

const (
	formatYAML format = "yaml"
	formatJSON format = "json"
)

func parseFormat(s string) (format, error) {
	switch format(s) {
	case formatYAML, formatJSON:
		return format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q, want yaml or json", s)
	}
}

func write(cmd *cobra.Command, v any) error {
	raw, _ := cmd.Flags().GetString("output")
	f, err := parseFormat(raw)
	if err != nil {
		return err
	}
	return encode(cmd.OutOrStdout(), f, v)
}

func encode(w io.Writer, f format, v any) error {
	if f == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
