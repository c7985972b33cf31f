package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"gopkg.in/yaml.v3"
)

// OutputOptions selects how HandleOutput prints a value.
type OutputOptions struct {
	// Format is "json" or "yaml". JSON is used if empty.
	Format string

	// Template is a Go template that replaces Format if set.
	Template string
}

// HandleOutput writes data according to the template or format option.
func HandleOutput(w io.Writer, opts OutputOptions, data any) error {
	if opts.Template != "" {
		tmpl, err := template.New("output").Parse(opts.Template)
		if err != nil {
			return fmt.Errorf("failed to parse template: %w", err)
		}

		if err := tmpl.Execute(w, data); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		_, err = fmt.Fprintln(w)
		return err
	}

	var output []byte
	var err error

	switch opts.Format {
	case "yaml":
		output, err = yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		// yaml.Marshal already ends with a newline.
		_, err = w.Write(output)
		return err
	case "json", "":
		output, err = json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format %q", opts.Format)
	}

	_, err = fmt.Fprintln(w, string(output))
	return err
}
