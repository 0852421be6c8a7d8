package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Formatter renders command output in the selected format.
type Formatter interface {
	// PrintSuccess prints a success message.
	PrintSuccess(message string) error
	// PrintError prints an error message.
	PrintError(message string) error
	// PrintTable prints a table with headers and rows.
	PrintTable(headers []string, rows [][]string) error
	// PrintJSON prints arbitrary data as JSON.
	PrintJSON(data any) error
}

// NewFormatter returns the formatter for the requested output format.
func NewFormatter(format string, w io.Writer) Formatter {
	if format == "json" {
		return NewJSONFormatter(w)
	}
	return NewTextFormatter(w)
}

// TextFormatter renders human-readable output with tabwriter-aligned
// tables. Status markers are colored only when writing to a terminal.
type TextFormatter struct {
	writer io.Writer
	colors bool
}

// NewTextFormatter creates a TextFormatter writing to w.
func NewTextFormatter(w io.Writer) *TextFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &TextFormatter{writer: w, colors: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (f *TextFormatter) PrintSuccess(message string) error {
	mark := "✓"
	if f.colors {
		mark = color.New(color.FgGreen).Sprint(mark)
	}
	_, err := fmt.Fprintf(f.writer, "%s %s\n", mark, message)
	return err
}

func (f *TextFormatter) PrintError(message string) error {
	mark := "✗"
	if f.colors {
		mark = color.New(color.FgRed).Sprint(mark)
	}
	_, err := fmt.Fprintf(f.writer, "%s %s\n", mark, message)
	return err
}

func (f *TextFormatter) PrintTable(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(upper, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func (f *TextFormatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// JSONFormatter renders everything as JSON for scripting.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a JSONFormatter writing to w.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONFormatter{writer: w}
}

func (f *JSONFormatter) PrintSuccess(message string) error {
	return f.PrintJSON(map[string]any{"status": "success", "message": message})
}

func (f *JSONFormatter) PrintError(message string) error {
	return f.PrintJSON(map[string]any{"status": "error", "message": message})
}

func (f *JSONFormatter) PrintTable(headers []string, rows [][]string) error {
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		entry := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				entry[h] = row[i]
			} else {
				entry[h] = ""
			}
		}
		data = append(data, entry)
	}
	return f.PrintJSON(data)
}

func (f *JSONFormatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
