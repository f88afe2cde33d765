package facility

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// DefaultPreviewRows is how many rows Preview shows when n <= 0.
const DefaultPreviewRows = 5

// Preview writes the header and the first n rows as aligned columns,
// prefixed with the zero-based row index.
func (t *Table) Preview(out io.Writer, n int) {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\t"+strings.Join(t.header, "\t"))
	for i := 0; i < n; i++ {
		_, _ = fmt.Fprintf(w, "%d\t%s\n", i, strings.Join(t.rows[i], "\t"))
	}
	_ = w.Flush()

	if len(t.rows) > n {
		_, _ = fmt.Fprintf(out, "[%d rows x %d columns]\n", len(t.rows), len(t.header))
	}
}
