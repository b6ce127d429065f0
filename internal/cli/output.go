package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// structuredOutput reports whether results are printed as data rather than text.
func structuredOutput() bool {
	return jsonOutput || outputFormat != ""
}

// output writes human readable results to a command's stdout.
type output struct {
	w io.Writer
}

func (o output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

func (o output) println(args ...any) {
	fmt.Fprintln(o.w, args...)
}

// table starts an aligned table with the given header.
func (o output) table(header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

// render prints data as JSON or YAML when requested, and calls text otherwise.
func render(cmd *cobra.Command, data any, text func(w output)) error {
	out := cmd.OutOrStdout()
	switch {
	case outputFormat == formatYAML:
		return printYAML(out, data)
	case jsonOutput || outputFormat == formatJSON:
		return printJSON(out, data)
	}
	text(output{w: out})
	return nil
}

// printJSON prints data as indented JSON
func printJSON(w io.Writer, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to format output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// printYAML prints data as YAML, using the JSON field names.
func printYAML(w io.Writer, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("unable to format output: %w", err)
	}
	y, err := yaml.JSONToYAML(b)
	if err != nil {
		return fmt.Errorf("unable to format output: %w", err)
	}
	_, err = w.Write(y)
	return err
}
