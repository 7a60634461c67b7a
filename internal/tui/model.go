package tui

import (
	"encoding/hex"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad/tree"
	"github.com/tturner/madscope/internal/pcap"
)

// Model browses decoded datagrams: a list on the left, the selected
// datagram's field tree and annotations on the right.
type Model struct {
	source    string
	datagrams []*dissect.Datagram
	stalled   []tree.Annotation
	styles    Styles
	layout    Layout

	cursor       int
	listOffset   int
	detailOffset int
	showHex      bool
	status       string
}

// NewModel creates a browser over an already decoded capture.
func NewModel(source string, decoded *pcap.Decoded) *Model {
	return &Model{
		source:    source,
		datagrams: decoded.Datagrams,
		stalled:   decoded.Stalled,
		styles:    DefaultStyles,
		layout:    NewLayout(DefaultWidth, DefaultHeight),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = NewLayout(msg.Width, msg.Height)
		m.follow()
		return m, nil

	case clipboardCopyMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("copied %d hex characters", len(msg.content))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.layout.BodyHeight
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "pgup":
		m.move(-page)
	case "pgdown":
		m.move(page)
	case "home", "g":
		m.move(-len(m.datagrams))
	case "end", "G":
		m.move(len(m.datagrams))
	case "n":
		m.nextAnnotated()
	case "ctrl+d":
		m.detailOffset += page / 2
	case "ctrl+u":
		m.detailOffset -= page / 2
		if m.detailOffset < 0 {
			m.detailOffset = 0
		}
	case "x":
		m.showHex = !m.showHex
		m.detailOffset = 0
	case "c":
		if dg := m.Selected(); dg != nil {
			return m, copyToClipboard(hex.EncodeToString(dg.Raw))
		}
	}
	return m, nil
}

// Selected returns the datagram under the cursor, or nil for an empty
// capture.
func (m *Model) Selected() *dissect.Datagram {
	if len(m.datagrams) == 0 {
		return nil
	}
	return m.datagrams[m.cursor]
}

func (m *Model) move(delta int) {
	if len(m.datagrams) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.datagrams) {
		m.cursor = len(m.datagrams) - 1
	}
	m.detailOffset = 0
	m.status = ""
	m.follow()
}

// follow keeps the cursor inside the visible list window.
func (m *Model) follow() {
	h := m.layout.BodyHeight
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+h {
		m.listOffset = m.cursor - h + 1
	}
}

// nextAnnotated moves to the next datagram carrying a warning or error,
// wrapping at the end.
func (m *Model) nextAnnotated() {
	n := len(m.datagrams)
	for i := 1; i <= n; i++ {
		idx := (m.cursor + i) % n
		if m.datagrams[idx].Worst() >= tree.SeverityWarn {
			m.move(idx - m.cursor)
			return
		}
	}
	m.status = "no annotated datagrams"
}

// View implements tea.Model.
func (m *Model) View() string {
	s := m.styles
	header := s.Title.Render("madscope") + s.Dim.Render(fmt.Sprintf(" %s  %d datagrams  %d incomplete transfers",
		m.source, len(m.datagrams), len(m.stalled)))

	list := s.BoxFocused.Width(m.layout.ListWidth).Render(padLines(m.listLines(), m.layout.BodyHeight))
	detail := s.Box.Width(m.layout.DetailWidth).Render(padLines(window(m.detailLines(), m.detailOffset, m.layout.BodyHeight), m.layout.BodyHeight))
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)

	return strings.Join([]string{header, body, m.footer()}, "\n")
}

func (m *Model) listLines() []string {
	s := m.styles
	if len(m.datagrams) == 0 {
		return []string{s.Dim.Render("no management datagrams")}
	}
	var lines []string
	for i, text := range window(m.summaryLines(), m.listOffset, m.layout.BodyHeight) {
		idx := m.listOffset + i
		line := truncate(text, m.layout.ListWidth-2)
		if idx == m.cursor {
			line = s.Selected.Render(line)
		}
		lines = append(lines, StatusIcon(m.datagrams[idx].Worst(), s)+" "+line)
	}
	return lines
}

func (m *Model) summaryLines() []string {
	lines := make([]string, len(m.datagrams))
	for i, dg := range m.datagrams {
		lines[i] = fmt.Sprintf("%5d %s", dg.Frame, dg.Summary())
	}
	return lines
}

func (m *Model) detailLines() []string {
	s := m.styles
	dg := m.Selected()
	if dg == nil {
		return nil
	}
	lines := []string{s.Bold.Render(truncate(dg.Summary(), m.layout.DetailWidth))}
	if dg.Conversation.Src != "" || dg.Conversation.Dst != "" {
		lines = append(lines, s.Dim.Render(dg.Conversation.String()))
	}
	if !dg.Timestamp.IsZero() {
		lines = append(lines, s.Dim.Render(dg.Timestamp.UTC().Format("2006-01-02 15:04:05.000000")))
	}
	lines = append(lines, "")

	if m.showHex {
		lines = append(lines, strings.Split(strings.TrimRight(pcap.HexDump(dg.Raw, 16), "\n"), "\n")...)
		if len(dg.Reassembled) > 0 {
			lines = append(lines, "", s.Group.Render("Reassembled payload"))
			lines = append(lines, strings.Split(strings.TrimRight(pcap.HexDump(dg.Reassembled, 16), "\n"), "\n")...)
		}
		return lines
	}

	if dg.Root != nil {
		lines = m.treeLines(lines, dg.Root, 0)
	}
	if len(dg.Annotations) > 0 {
		lines = append(lines, "", s.Group.Render("Annotations"))
		for _, a := range dg.Annotations {
			text := truncate(fmt.Sprintf("[%d+%d] %s", a.Offset, a.Length, a.Message), m.layout.DetailWidth-9)
			lines = append(lines, s.Severity(a.Severity).Render(fmt.Sprintf("%-7s", a.Severity))+" "+text)
		}
	}
	return lines
}

func (m *Model) treeLines(lines []string, n *tree.Node, depth int) []string {
	s := m.styles
	pad := strings.Repeat("  ", depth)
	if n.Value != "" {
		lines = append(lines, pad+s.Field.Render(n.Name)+": "+s.Value.Render(n.Value))
	} else {
		lines = append(lines, pad+s.Group.Render(n.Name))
	}
	for _, c := range n.Children {
		lines = m.treeLines(lines, c, depth+1)
	}
	return lines
}

func (m *Model) footer() string {
	s := m.styles
	keys := []struct{ key, hint string }{
		{"↑/↓", "move"},
		{"n", "next annotated"},
		{"x", "hex"},
		{"ctrl+d/u", "scroll detail"},
		{"c", "copy hex"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, s.KeyBinding.Render(k.key)+" "+s.KeyHint.Render(k.hint))
	}
	if m.status != "" {
		parts = append(parts, s.Warning.Render(m.status))
	}
	return s.Footer.Render(strings.Join(parts, "  "))
}
