package tally

import (
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/batch-fetch/pkg/fetch"
)

// maxListed is the longest identifier list printed in full.
const maxListed = 10

// WriteInitialReport prints the target, the identifiers searched for and the
// number of connections used.
func WriteInitialReport(w io.Writer, label, baseURL string, ids []fetch.Identifier, connections int) {
	fmt.Fprintf(w, "%s site: %s\n", label, baseURL)

	var list string
	switch {
	case len(ids) == 0:
		list = "none"
	case len(ids) <= maxListed:
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = string(id)
		}
		list = strings.Join(parts, ", ")
	default:
		list = fmt.Sprintf("from %s to %s", ids[0], ids[len(ids)-1])
	}
	fmt.Fprintf(w, "Searching for %d flag%s: %s\n", len(ids), plural(len(ids)), list)
	fmt.Fprintf(w, "%d concurrent connection%s will be used.\n", connections, plural(connections))
}

// WriteFinalReport prints a separator and the report summary.
func WriteFinalReport(w io.Writer, r Report) {
	fmt.Fprintln(w, strings.Repeat("-", 20))
	fmt.Fprintln(w, r.Summary())
}
