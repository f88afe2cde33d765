package facility

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Load reads a CSV file with a header row. Column names and row order are
// preserved exactly; no columns are required at load time.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "facility: open csv")
	}
	defer f.Close() //nolint:errcheck

	t, err := Read(f)
	if err != nil {
		return nil, eris.Wrapf(err, "facility: load %s", path)
	}
	return t, nil
}

// Read parses a CSV stream with a header row.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "facility: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("facility: csv has no header row")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	for i, row := range records[1:] {
		if len(row) > len(header) {
			return nil, eris.Errorf("facility: row %d has %d fields, header has %d", i+1, len(row), len(header))
		}
	}

	return NewTable(header, records[1:]), nil
}

// Write serializes the table to path, replacing any existing file.
func (t *Table) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "facility: create output")
	}

	if err := t.WriteCSV(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "facility: close output")
}

// WriteCSV writes the header and rows to w.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return eris.Wrap(err, "facility: write header")
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return eris.Wrap(err, "facility: write rows")
	}
	return nil
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
