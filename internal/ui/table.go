// Package ui formats tables, labels, and timestamps for terminal output.
package ui

import (
	"strings"
	"unicode/utf8"
)

const (
	tableCellMaxWidth = 50
	tableCellEllipsis = "..."
	tableColumnGap    = 2
)

// Table accumulates rows and renders them with columns aligned on visible
// width, so lipgloss-styled cells line up with plain ones. Cells are
// flattened to a single line as they are added.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable returns a table with the given column headers.
func NewTable(headers ...string) *Table {
	table := &Table{
		headers: make([]string, len(headers)),
		widths:  make([]int, len(headers)),
	}
	for i, header := range headers {
		table.headers[i] = flattenCell(header)
		table.widths[i] = visibleWidth(table.headers[i])
	}
	return table
}

// Row appends a row of cells, widening columns as needed.
func (t *Table) Row(cells ...string) {
	row := make([]string, len(cells))
	for i, cell := range cells {
		row[i] = flattenCell(cell)
		if i >= len(t.widths) {
			continue
		}
		if width := visibleWidth(row[i]); width > t.widths[i] {
			t.widths[i] = width
		}
	}
	t.rows = append(t.rows, row)
}

// String renders the header line followed by every row. The last column is
// never padded.
func (t *Table) String() string {
	var out strings.Builder
	t.writeRow(&out, t.headers)
	for _, row := range t.rows {
		t.writeRow(&out, row)
	}
	return out.String()
}

func (t *Table) writeRow(out *strings.Builder, cells []string) {
	for i, cell := range cells {
		out.WriteString(cell)
		if i == len(cells)-1 {
			break
		}
		padding := tableColumnGap
		if i < len(t.widths) {
			padding += t.widths[i] - visibleWidth(cell)
		}
		for ; padding > 0; padding-- {
			out.WriteByte(' ')
		}
	}
	out.WriteByte('\n')
}

// TruncateTableCell limits cell width while preserving visible characters.
func TruncateTableCell(value string) string {
	value = flattenCell(value)
	if visibleWidth(value) <= tableCellMaxWidth {
		return value
	}

	max := tableCellMaxWidth - len(tableCellEllipsis)
	return cutVisible(value, max) + tableCellEllipsis
}

// flattenCell collapses a cell onto one line so it cannot break row
// alignment.
func flattenCell(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, value)
}

// visibleWidth counts the runes a terminal will actually display, skipping
// SGR escape sequences.
func visibleWidth(value string) int {
	width := 0
	for i := 0; i < len(value); {
		if value[i] == '\x1b' {
			i = skipEscape(value, i)
			continue
		}
		_, size := utf8.DecodeRuneInString(value[i:])
		width++
		i += size
	}
	return width
}

// cutVisible keeps at most max visible runes. Escape sequences pass through
// uncounted, so styling survives the cut.
func cutVisible(value string, max int) string {
	var out strings.Builder
	visible := 0
	for i := 0; i < len(value); {
		if value[i] == '\x1b' {
			end := skipEscape(value, i)
			out.WriteString(value[i:end])
			i = end
			continue
		}
		if visible >= max {
			break
		}
		_, size := utf8.DecodeRuneInString(value[i:])
		out.WriteString(value[i : i+size])
		visible++
		i += size
	}
	return out.String()
}

// skipEscape returns the index just past the SGR sequence starting at i.
func skipEscape(value string, i int) int {
	end := i + 1
	for end < len(value) && value[end] != 'm' {
		end++
	}
	if end < len(value) {
		end++
	}
	return end
}
