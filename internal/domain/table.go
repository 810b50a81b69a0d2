package domain

import "time"

// Table is the tabular form of a snapshot: a header and rows of cell text.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable concatenates activities into a table whose columns are the union of all field
// names in first-seen order, followed by loaded_date stamped with loadedAt.
func NewTable(activities []Activity, loadedAt time.Time) Table {
	index := make(map[string]int)
	columns := make([]string, 0, 64)
	for _, a := range activities {
		for _, f := range a.Fields {
			if f.Name == LoadedDateColumn {
				continue
			}
			if _, seen := index[f.Name]; !seen {
				index[f.Name] = len(columns)
				columns = append(columns, f.Name)
			}
		}
	}
	index[LoadedDateColumn] = len(columns)
	columns = append(columns, LoadedDateColumn)

	stamp := loadedAt.Format(time.RFC3339)
	rows := make([][]string, 0, len(activities))
	for _, a := range activities {
		row := make([]string, len(columns))
		for _, f := range a.Fields {
			if f.Name == LoadedDateColumn {
				continue
			}
			row[index[f.Name]] = f.Value
		}
		row[len(columns)-1] = stamp
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Column returns the position of a column, or -1.
func (t Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
