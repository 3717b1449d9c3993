package export

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Field is one labelled value printed above or below a table.
type Field struct {
	Label string
	Value string
}

// Section is a titled block of a document holding a table, free text lines or both.
type Section struct {
	Heading string
	Table   Dataset
	Lines   []string
}

// Document is a multi-section export such as a student report card.
type Document struct {
	Title     string
	Landscape bool
	Fields    []Field
	Sections  []Section
	Footer    []Field
}

func (d Dataset) empty() bool {
	return len(d.Headers) == 0
}

func (d Document) tables() int {
	count := 0
	for _, section := range d.Sections {
		if !section.Table.empty() {
			count++
		}
	}
	return count
}
