package export

import "fmt"

// Table is a rectangular export body. Rows shorter than Headers are padded.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Footer lines are printed under the table (legend, generation notes).
	Footer []string
}

// Validate checks the table has a header row and no row wider than it.
func (t Table) Validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("export requires at least one header")
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, header has %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}

func (t Table) cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}
