package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders datasets and documents into CSV bytes.
type CSVExporter struct {
	// Comma overrides the field delimiter when non-zero.
	Comma rune
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if data.empty() {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := e.writer(buf)
	if err := writeDataset(writer, data); err != nil {
		return nil, err
	}
	return flush(writer, buf)
}

// RenderDocument writes fields first, then every section table separated by a
// blank record. Sections without a table emit their lines as single-column records.
func (e *CSVExporter) RenderDocument(doc Document) ([]byte, error) {
	if doc.tables() == 0 {
		return nil, fmt.Errorf("csv document requires at least one table")
	}
	buf := &bytes.Buffer{}
	writer := e.writer(buf)

	for _, field := range doc.Fields {
		if err := writer.Write([]string{field.Label, field.Value}); err != nil {
			return nil, fmt.Errorf("write csv field: %w", err)
		}
	}
	for i, section := range doc.Sections {
		if i > 0 || len(doc.Fields) > 0 {
			if err := writer.Write([]string{""}); err != nil {
				return nil, fmt.Errorf("write csv separator: %w", err)
			}
		}
		if section.Heading != "" {
			if err := writer.Write([]string{section.Heading}); err != nil {
				return nil, fmt.Errorf("write csv heading: %w", err)
			}
		}
		if !section.Table.empty() {
			if err := writeDataset(writer, section.Table); err != nil {
				return nil, err
			}
		}
		for _, line := range section.Lines {
			if err := writer.Write([]string{line}); err != nil {
				return nil, fmt.Errorf("write csv line: %w", err)
			}
		}
	}
	for _, field := range doc.Footer {
		if err := writer.Write([]string{field.Label, field.Value}); err != nil {
			return nil, fmt.Errorf("write csv footer: %w", err)
		}
	}
	return flush(writer, buf)
}

func (e *CSVExporter) writer(buf *bytes.Buffer) *csv.Writer {
	writer := csv.NewWriter(buf)
	if e != nil && e.Comma != 0 {
		writer.Comma = e.Comma
	}
	return writer
}

func writeDataset(writer *csv.Writer, data Dataset) error {
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}

func flush(writer *csv.Writer, buf *bytes.Buffer) ([]byte, error) {
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
