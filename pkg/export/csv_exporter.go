package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Field is one labelled value in a result report.
type Field struct {
	Label string
	Value string
}

// Report is the printable form of a student's medical result.
type Report struct {
	Title  string
	Fields []Field
}

// CSVExporter renders a report as a two-column CSV document.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the report.
func (e *CSVExporter) Render(report Report) ([]byte, error) {
	if len(report.Fields) == 0 {
		return nil, fmt.Errorf("csv requires at least one field")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"field", "value"}); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, field := range report.Fields {
		if err := writer.Write([]string{field.Label, field.Value}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
