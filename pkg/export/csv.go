// Package export renders tabular data for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is a header row followed by records in header order.
type Table struct {
	Headers []string
	Rows    [][]string
}

// CSV encodes the table. Short rows are padded and long rows rejected.
func CSV(t Table) ([]byte, error) {
	if len(t.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(t.Headers))
	for i, row := range t.Rows {
		if len(row) > len(t.Headers) {
			return nil, fmt.Errorf("row %d has %d fields, want at most %d", i, len(row), len(t.Headers))
		}
		n := copy(record, row)
		for j := n; j < len(record); j++ {
			record[j] = ""
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
