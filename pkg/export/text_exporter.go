package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// TextExporter renders documents as aligned plain-text tables for terminals.
// Column widths are measured in display cells so CJK names line up.
type TextExporter struct {
	// Gap is the number of spaces between columns. Defaults to two.
	Gap int
}

// NewTextExporter builds a text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{Gap: 2}
}

// Render writes a single dataset as a table.
func (e *TextExporter) Render(data Dataset) ([]byte, error) {
	if data.empty() {
		return nil, fmt.Errorf("text table requires at least one header")
	}
	buf := &bytes.Buffer{}
	e.writeTable(buf, data)
	return buf.Bytes(), nil
}

// RenderDocument writes the title, fields, sections and footer in order.
func (e *TextExporter) RenderDocument(doc Document) ([]byte, error) {
	buf := &bytes.Buffer{}
	if doc.Title != "" {
		fmt.Fprintln(buf, doc.Title)
		fmt.Fprintln(buf, strings.Repeat("=", runewidth.StringWidth(doc.Title)))
	}
	writeTextFields(buf, doc.Fields)
	for _, section := range doc.Sections {
		fmt.Fprintln(buf)
		if section.Heading != "" {
			fmt.Fprintln(buf, section.Heading)
		}
		if !section.Table.empty() {
			e.writeTable(buf, section.Table)
		}
		for _, line := range section.Lines {
			fmt.Fprintf(buf, "  %s\n", line)
		}
	}
	if len(doc.Footer) > 0 {
		fmt.Fprintln(buf)
		writeTextFields(buf, doc.Footer)
	}
	return buf.Bytes(), nil
}

func writeTextFields(w io.Writer, fields []Field) {
	width := 0
	for _, field := range fields {
		if n := runewidth.StringWidth(field.Label); n > width {
			width = n
		}
	}
	for _, field := range fields {
		fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(field.Label+":", width+1), field.Value)
	}
}

func (e *TextExporter) writeTable(w io.Writer, data Dataset) {
	gap := 2
	if e != nil && e.Gap > 0 {
		gap = e.Gap
	}
	widths := make([]int, len(data.Headers))
	rightAlign := make([]bool, len(data.Headers))
	for i, header := range data.Headers {
		widths[i] = runewidth.StringWidth(header)
		rightAlign[i] = len(data.Rows) > 0
	}
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			cell := row[header]
			if n := runewidth.StringWidth(cell); n > widths[i] {
				widths[i] = n
			}
			if cell != "" && !numeric(cell) {
				rightAlign[i] = false
			}
		}
	}

	spacer := strings.Repeat(" ", gap)
	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if rightAlign[i] {
				parts[i] = runewidth.FillLeft(cell, widths[i])
			} else {
				parts[i] = runewidth.FillRight(cell, widths[i])
			}
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, spacer), " "))
	}

	line(data.Headers)
	rules := make([]string, len(widths))
	for i, width := range widths {
		rules[i] = strings.Repeat("-", width)
	}
	fmt.Fprintln(w, strings.Join(rules, spacer))
	for _, row := range data.Rows {
		cells := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			cells[i] = row[header]
		}
		line(cells)
	}
}
