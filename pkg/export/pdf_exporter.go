package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin  = 10.0
	rowHeight   = 7.0
	headerSize  = 9.0
	bodySize    = 8.5
	cellPadding = 3.0
)

// PDFExporter renders datasets and documents into A4 PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if data.empty() {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	return e.RenderDocument(Document{
		Title:     title,
		Landscape: len(data.Headers) > 8,
		Sections:  []Section{{Table: data}},
	})
}

// RenderDocument lays out fields, sections and footer in order. Tables repeat
// their header row after a page break.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf document requires at least one section")
	}
	orientation := "P"
	if doc.Landscape {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pageMargin, 15, pageMargin)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 2*pageMargin

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}
	writeFields(pdf, tr, doc.Fields)

	for _, section := range doc.Sections {
		if section.Heading != "" {
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, tr(section.Heading), "", 1, "L", false, 0, "")
		}
		if !section.Table.empty() {
			writeTable(pdf, tr, section.Table, contentWidth)
		}
		if len(section.Lines) > 0 {
			pdf.SetFont("Arial", "", bodySize)
			for _, line := range section.Lines {
				pdf.MultiCell(0, 5, tr(line), "", "L", false)
			}
		}
	}

	if len(doc.Footer) > 0 {
		pdf.Ln(4)
		writeFields(pdf, tr, doc.Footer)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFields(pdf *gofpdf.Fpdf, tr func(string) string, fields []Field) {
	if len(fields) == 0 {
		return
	}
	labelWidth := 0.0
	pdf.SetFont("Arial", "B", 10)
	for _, field := range fields {
		if w := pdf.GetStringWidth(tr(field.Label)); w > labelWidth {
			labelWidth = w
		}
	}
	labelWidth += cellPadding * 2
	for _, field := range fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 6, tr(field.Label), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(field.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
}

func writeTable(pdf *gofpdf.Fpdf, tr func(string) string, data Dataset, contentWidth float64) {
	widths := columnWidths(pdf, tr, data, contentWidth)
	header := func() {
		pdf.SetFont("Arial", "B", headerSize)
		pdf.SetFillColor(230, 230, 230)
		for i, name := range data.Headers {
			pdf.CellFormat(widths[i], rowHeight+1, tr(name), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", bodySize)
	}

	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+rowHeight > pageHeight-bottom-5 {
			pdf.AddPage()
			header()
		}
		for i, name := range data.Headers {
			align := "L"
			if i > 0 && numeric(row[name]) {
				align = "R"
			}
			pdf.CellFormat(widths[i], rowHeight, tr(row[name]), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// columnWidths sizes columns to their widest cell and scales the result to the content width.
func columnWidths(pdf *gofpdf.Fpdf, tr func(string) string, data Dataset, contentWidth float64) []float64 {
	widths := make([]float64, len(data.Headers))
	total := 0.0
	pdf.SetFont("Arial", "B", headerSize)
	for i, name := range data.Headers {
		widths[i] = pdf.GetStringWidth(tr(name)) + cellPadding*2
	}
	pdf.SetFont("Arial", "", bodySize)
	for _, row := range data.Rows {
		for i, name := range data.Headers {
			if w := pdf.GetStringWidth(tr(row[name])) + cellPadding*2; w > widths[i] {
				widths[i] = w
			}
		}
	}
	for _, w := range widths {
		total += w
	}
	if total == 0 {
		return widths
	}
	scale := contentWidth / total
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}

func numeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}
