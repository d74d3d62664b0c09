// Package output renders command results for the terminal.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// newTable returns a plain table: no borders or rules, columns left-aligned
// and separated by two spaces, long values kept on one line.
func newTable(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetColumnSeparator("")
	t.SetCenterSeparator("")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetAutoWrapText(false)
	t.SetNoWhiteSpace(true)
	t.SetTablePadding("  ")
	return t
}

// PrintTable writes rows under upper-cased headers.
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	t := newTable(w)
	t.SetHeader(headers)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.AppendBulk(rows)
	t.Render()
}

// SimpleTable prints key-value pairs, one per line, without a header.
func SimpleTable(w io.Writer, pairs [][2]string) {
	t := newTable(w)
	for _, p := range pairs {
		t.Append(p[:])
	}
	t.Render()
}
