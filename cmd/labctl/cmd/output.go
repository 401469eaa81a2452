package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/labctl/pkg/command"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// resultFormat returns --format, falling back to the config.
func resultFormat() (string, error) {
	f := strings.ToLower(outputFormat)
	if f == "" {
		f = cfg.Format
	}
	switch f {
	case "", formatText:
		return formatText, nil
	case formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("cannot encode %s", format)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable lays out rows under headers.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

type resultView struct {
	Command string `json:"command" yaml:"command"`
	Values  []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

// printResults prints what each command returned. Text output has one line
// per command that returned something.
func printResults(results []command.Result, format string) error {
	if format != formatText {
		views := make([]resultView, len(results))
		for i, r := range results {
			views[i] = resultView{Command: r.Path, Values: r.Values}
		}
		return encode(os.Stdout, format, views)
	}
	for _, r := range results {
		if len(r.Values) > 0 {
			fmt.Println(formatValues(r.Values))
		}
	}
	return nil
}

// formatValues joins the values a method returned with commas.
func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
