package main

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// columnAt returns the display column where value starts in line.
func columnAt(t *testing.T, line, value string) int {
	t.Helper()
	idx := strings.LastIndex(line, value)
	require.GreaterOrEqual(t, idx, 0, "%q not in %q", value, line)
	return runewidth.StringWidth(line[:idx])
}

func tableLines(tb *table) []string {
	return strings.Split(strings.TrimRight(tb.String(), "\n"), "\n")
}

func TestTable_AlignsColumns(t *testing.T) {
	tb := newTable("NAME", "STATE")
	tb.add("echo", "builtin")
	tb.add("nonebot_plugin_status", "enabled")

	lines := tableLines(tb)
	require.Len(t, lines, 3)

	want := len("nonebot_plugin_status") + columnGap
	assert.Equal(t, want, columnAt(t, lines[0], "STATE"))
	assert.Equal(t, want, columnAt(t, lines[1], "builtin"))
	assert.Equal(t, want, columnAt(t, lines[2], "enabled"))
}

func TestTable_WideRunes(t *testing.T) {
	tb := newTable("NAME", "DESC")
	tb.add("天气插件", "weather")
	tb.add("echo", "repeat")

	lines := tableLines(tb)
	require.Len(t, lines, 3)

	want := runewidth.StringWidth("天气插件") + columnGap
	assert.Equal(t, want, columnAt(t, lines[1], "weather"))
	assert.Equal(t, want, columnAt(t, lines[2], "repeat"))
	assert.Equal(t, want, columnAt(t, lines[0], "DESC"))
}

func TestTable_TruncatesAllButLastColumn(t *testing.T) {
	long := strings.Repeat("x", maxColumnWidth+10)
	tb := newTable("A", "B")
	tb.add(long, long)

	lines := tableLines(tb)
	assert.Contains(t, lines[1], "…")
	assert.True(t, strings.HasSuffix(lines[1], long))
}

func TestTable_NoTrailingSpaces(t *testing.T) {
	tb := newTable("A", "B", "C")
	tb.add("1", "2", "")
	tb.style = func(int, int) lipgloss.Style { return lipgloss.NewStyle() }

	for _, l := range tableLines(tb) {
		assert.Equal(t, strings.TrimRight(l, " "), l)
	}
}
