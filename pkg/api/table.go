package api

type (
	// Table is a named grid derived from a subset of a run's properties.
	// Tables are rebuilt on every read and carry no identity between calls
	Table struct {
		Title   string     `json:"title"`
		Columns []string   `json:"columns"`
		Rows    []TableRow `json:"rows"`
	}

	// TableRow holds one row label and one cell per table column
	TableRow struct {
		Title string   `json:"title"`
		Cells []string `json:"cells"`
	}
)

const (
	// TablePrefix marks a key whose value is a regular expression declaring
	// a table. The table title is the remainder of the key
	TablePrefix = "_cbp_table_"

	// SanitizerPrefix marks a key selecting the sanitizer for one cell,
	// addressed as <table>_<row>_<column>
	SanitizerPrefix = "_cbp_sanitizer_"

	// InternalSanitizer is the selector value that enables the trusted
	// markup policy for a cell
	InternalSanitizer = "internal"

	// FallbackTable titles the table holding unclaimed properties
	FallbackTable = "Key"

	// FallbackColumn is the single column of the fallback table
	FallbackColumn = "Value"
)

// Column returns the index of the named column, or -1
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Row returns the row with the given label, if present
func (t *Table) Row(title string) (TableRow, bool) {
	for _, r := range t.Rows {
		if r.Title == title {
			return r, true
		}
	}
	return TableRow{}, false
}

// Cell returns the text at the given row label and column name
func (t *Table) Cell(row, column string) (string, bool) {
	r, ok := t.Row(row)
	if !ok {
		return "", false
	}
	idx := t.Column(column)
	if idx < 0 || idx >= len(r.Cells) {
		return "", false
	}
	return r.Cells[idx], true
}
