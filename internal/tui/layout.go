package tui

import "strings"

// Layout constants
const (
	DefaultWidth  = 120
	DefaultHeight = 40
	MinWidth      = 60
	MinHeight     = 12

	// header, footer and box borders
	chromeHeight = 5
)

// Layout holds the pane sizes for the current terminal size.
type Layout struct {
	Width  int
	Height int

	ListWidth   int
	DetailWidth int
	BodyHeight  int
}

// NewLayout splits the terminal into a datagram list and a detail pane.
func NewLayout(width, height int) Layout {
	if width < MinWidth {
		width = MinWidth
	}
	if height < MinHeight {
		height = MinHeight
	}
	l := Layout{Width: width, Height: height}
	l.ListWidth = width * 2 / 5
	// two boxes, each with border and padding
	l.DetailWidth = width - l.ListWidth - 8
	l.ListWidth -= 4
	l.BodyHeight = height - chromeHeight
	return l
}

// truncate cuts s to width runes, marking the cut.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// window returns at most height lines starting at offset.
func window(lines []string, offset, height int) []string {
	if offset > len(lines) {
		offset = len(lines)
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + height
	if end > len(lines) {
		end = len(lines)
	}
	return lines[offset:end]
}

// padLines pads the block to exactly height lines.
func padLines(lines []string, height int) string {
	out := make([]string, height)
	copy(out, lines)
	return strings.Join(out, "\n")
}
