package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/germanamz/nbdesk/cmd/nbdesk/internal/styles"
)

const (
	columnGap      = 2
	maxColumnWidth = 60
)

// table renders aligned text columns. Cells hold plain text and styles are
// applied after padding, so wide (CJK) runes count double and escape codes
// never disturb alignment. Every column but the last is capped at
// maxColumnWidth.
type table struct {
	header []string
	rows   [][]string
	// style picks the style of a body cell. Nil leaves cells plain.
	style func(row, col int) lipgloss.Style
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	w := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i >= len(w) {
				break
			}
			w[i] = max(w[i], min(runewidth.StringWidth(c), maxColumnWidth))
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r)
	}
	return w
}

func (t *table) String() string {
	widths := t.widths()
	var sb strings.Builder

	writeRow := func(cells []string, style func(col int) lipgloss.Style) {
		var line strings.Builder
		for i, w := range widths {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			pad := 0
			if i < len(widths)-1 {
				c = runewidth.Truncate(c, w, "…")
				pad = w + columnGap - runewidth.StringWidth(c)
			}
			if style != nil && c != "" {
				c = style(i).Render(c)
			}
			line.WriteString(c)
			line.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteByte('\n')
	}

	writeRow(t.header, func(int) lipgloss.Style { return styles.HeaderStyle })
	for r, cells := range t.rows {
		if t.style == nil {
			writeRow(cells, nil)
			continue
		}
		writeRow(cells, func(col int) lipgloss.Style { return t.style(r, col) })
	}

	return sb.String()
}
