// Package facility loads, extends, and writes the facility location table.
package facility

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/road-distance-cli/internal/model"
)

// Required coordinate columns.
const (
	LatitudeColumn  = "latitude"
	LongitudeColumn = "longitude"
)

// ErrMissingColumn is returned when a required column is not in the header.
var ErrMissingColumn = eris.New("facility: missing required column")

// Table is an ordered set of facility records. Rows are never added,
// removed, or reordered after load; columns are only appended.
type Table struct {
	header []string
	rows   [][]string
}

// NewTable builds a table from a header and rows. Short rows are padded so
// every row is as wide as the header.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{header: append([]string(nil), header...)}
	t.rows = make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(header))
		copy(row, r)
		t.rows[i] = row
	}
	return t
}

// Header returns a copy of the column names.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.header)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i in column name.
func (t *Table) Value(i int, name string) (string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return "", eris.Wrapf(ErrMissingColumn, "column %q", name)
	}
	return t.rows[i][idx], nil
}

// Coordinate parses the latitude/longitude of row i.
func (t *Table) Coordinate(i int) (model.Coordinate, error) {
	lat, err := t.float(i, LatitudeColumn)
	if err != nil {
		return model.Coordinate{}, err
	}
	lon, err := t.float(i, LongitudeColumn)
	if err != nil {
		return model.Coordinate{}, err
	}
	return model.Coordinate{Lat: lat, Lon: lon}, nil
}

// Coordinates parses every row's coordinate in row order.
func (t *Table) Coordinates() ([]model.Coordinate, error) {
	out := make([]model.Coordinate, len(t.rows))
	for i := range t.rows {
		c, err := t.Coordinate(i)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (t *Table) float(i int, name string) (float64, error) {
	raw, err := t.Value(i, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "facility: row %d: parse %s %q", i+1, name, raw)
	}
	return v, nil
}

// AppendColumn adds a column with one value per row.
func (t *Table) AppendColumn(name string, values []string) error {
	if len(values) != len(t.rows) {
		return eris.Errorf("facility: column %q has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	t.header = append(t.header, name)
	for i, v := range values {
		t.rows[i] = append(t.rows[i], v)
	}
	return nil
}

// SetColumn replaces the values of an existing column, or appends the
// column when the header does not have it.
func (t *Table) SetColumn(name string, values []string) error {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return t.AppendColumn(name, values)
	}
	if len(values) != len(t.rows) {
		return eris.Errorf("facility: column %q has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	for i, v := range values {
		t.rows[i][idx] = v
	}
	return nil
}

// SetDistances stores a column of distances, writing missing values as
// empty cells.
func (t *Table) SetDistances(name string, distances []float64) error {
	values := make([]string, len(distances))
	for i, d := range distances {
		values[i] = model.FormatDistance(d)
	}
	return t.SetColumn(name, values)
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return NewTable(t.header, t.rows)
}
