package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad/tree"
	"github.com/tturner/madscope/internal/pcap"
)

// TextOptions controls datagram rendering.
type TextOptions struct {
	// Hex appends an annotated hex dump of each datagram.
	Hex bool
	// Offsets shows byte ranges next to group nodes.
	Offsets bool
}

type textStyles struct {
	header   lipgloss.Style
	summary  lipgloss.Style
	group    lipgloss.Style
	name     lipgloss.Style
	value    lipgloss.Style
	dim      lipgloss.Style
	severity map[tree.Severity]lipgloss.Style
}

func newTextStyles(r *lipgloss.Renderer) textStyles {
	return textStyles{
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")),
		summary: r.NewStyle().Foreground(lipgloss.Color("#c0caf5")),
		group:   r.NewStyle().Bold(true),
		name:    r.NewStyle().Foreground(lipgloss.Color("#7dcfff")),
		value:   r.NewStyle(),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#565f89")),
		severity: map[tree.Severity]lipgloss.Style{
			tree.SeverityNote:  r.NewStyle().Foreground(lipgloss.Color("#7dcfff")),
			tree.SeverityWarn:  r.NewStyle().Foreground(lipgloss.Color("#e0af68")),
			tree.SeverityError: r.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true),
		},
	}
}

// TextRenderer writes decoded datagrams as indented text. Styling follows
// the color profile of the destination writer.
type TextRenderer struct {
	w      io.Writer
	opts   TextOptions
	styles textStyles
}

// NewTextRenderer returns a renderer writing to w.
func NewTextRenderer(w io.Writer, opts TextOptions) *TextRenderer {
	return &TextRenderer{w: w, opts: opts, styles: newTextStyles(lipgloss.NewRenderer(w))}
}

// Datagram writes one decoded datagram.
func (t *TextRenderer) Datagram(dg *dissect.Datagram) {
	s := t.styles
	head := fmt.Sprintf("Frame %d", dg.Frame)
	if !dg.Timestamp.IsZero() {
		head += "  " + dg.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	if dg.Conversation.Src != "" || dg.Conversation.Dst != "" {
		head += "  " + dg.Conversation.String()
	}
	fmt.Fprintln(t.w, s.header.Render(head))
	fmt.Fprintln(t.w, "  "+s.summary.Render(dg.Summary()))

	if dg.Root != nil {
		t.node(dg.Root, 1)
	}
	for _, a := range dg.Annotations {
		t.annotation(a, "  ")
	}
	if t.opts.Hex {
		fmt.Fprintln(t.w, indent(pcap.FormatDatagramHex(dg.Raw, true), "  "))
		if len(dg.Reassembled) > 0 {
			fmt.Fprintln(t.w, "  Reassembled payload:")
			fmt.Fprintln(t.w, indent(pcap.HexDump(dg.Reassembled, 16), "  "))
		}
	}
	fmt.Fprintln(t.w)
}

func (t *TextRenderer) node(n *tree.Node, depth int) {
	s := t.styles
	pad := strings.Repeat("  ", depth)
	switch {
	case n.Value != "":
		fmt.Fprintf(t.w, "%s%s: %s\n", pad, s.name.Render(n.Name), s.value.Render(n.Value))
	case t.opts.Offsets:
		fmt.Fprintf(t.w, "%s%s %s\n", pad, s.group.Render(n.Name), s.dim.Render(fmt.Sprintf("[%d+%d]", n.Offset, n.Length)))
	default:
		fmt.Fprintf(t.w, "%s%s\n", pad, s.group.Render(n.Name))
	}
	for _, c := range n.Children {
		t.node(c, depth+1)
	}
}

func (t *TextRenderer) annotation(a tree.Annotation, pad string) {
	style := t.styles.severity[a.Severity]
	fmt.Fprintf(t.w, "%s%s %s %s\n", pad,
		style.Render(fmt.Sprintf("%-7s", a.Severity)),
		t.styles.dim.Render(fmt.Sprintf("[%d+%d] %s", a.Offset, a.Length, a.Kind)),
		a.Message)
}

// Stalled writes transactions that never completed.
func (t *TextRenderer) Stalled(list []tree.Annotation) {
	if len(list) == 0 {
		return
	}
	fmt.Fprintln(t.w, t.styles.header.Render(fmt.Sprintf("Incomplete transfers (%d)", len(list))))
	for _, a := range list {
		t.annotation(a, "  ")
	}
}

func indent(s, pad string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}

// WriteSummary writes one capture summary with per-class and per-attribute
// tables.
func WriteSummary(w io.Writer, s *pcap.Summary) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)

	fmt.Fprintln(w, title.Render("Capture Summary: "+s.File))
	fmt.Fprintf(w, "  Link type: %s\n", s.Stats.LinkType)
	fmt.Fprintf(w, "  Total packets: %d\n", s.Stats.TotalPackets)
	fmt.Fprintf(w, "  Management datagrams: %d\n", s.Stats.MADPackets)
	fmt.Fprintf(w, "  Other packets: %d\n", s.Stats.Skipped)
	for _, name := range sortedKeys(s.Stats.Transports) {
		fmt.Fprintf(w, "  Transport %s: %d\n", name, s.Stats.Transports[name])
	}
	d := s.Decode
	fmt.Fprintf(w, "  Clean: %d  Annotated: %d  Status errors: %d\n", d.CleanDatagrams, d.AnnotatedDatagrams, d.StatusErrors)
	fmt.Fprintf(w, "  Completed transfers: %d  Incomplete: %d\n", d.CompletedTransfers, s.Stalled)
	if s.TsharkMADs >= 0 {
		fmt.Fprintf(w, "  tshark datagrams: %d\n", s.TsharkMADs)
	}

	if len(d.ByClass) > 0 {
		classes := table.New().Border(lipgloss.NormalBorder()).BorderStyle(r.NewStyle()).
			Headers("Class", "Datagrams", "Bytes", "Status errors", "Annotated")
		for _, name := range sortedKeys(d.ByClass) {
			c := d.ByClass[name]
			classes.Row(name, fmt.Sprint(c.Count), fmt.Sprint(c.Bytes), fmt.Sprint(c.StatusErrors), fmt.Sprint(c.Annotated))
		}
		fmt.Fprintln(w, classes.Render())
	}
	if len(d.ByAttribute) > 0 {
		attrs := table.New().Border(lipgloss.NormalBorder()).BorderStyle(r.NewStyle()).
			Headers("Attribute", "Datagrams")
		for _, name := range sortedKeys(d.ByAttribute) {
			attrs.Row(name, fmt.Sprint(d.ByAttribute[name]))
		}
		fmt.Fprintln(w, attrs.Render())
	}
	if len(d.Annotations) > 0 {
		fmt.Fprintln(w, "  Annotations:")
		for _, kind := range sortedKeys(d.Annotations) {
			fmt.Fprintf(w, "    %s: %d\n", kind, d.Annotations[kind])
		}
	}
}

// WriteSummaryEntries writes a one-row-per-file table for a directory.
func WriteSummaryEntries(w io.Writer, entries []pcap.SummaryEntry) {
	r := lipgloss.NewRenderer(w)
	t := table.New().Border(lipgloss.NormalBorder()).BorderStyle(r.NewStyle()).
		Headers("File", "Packets", "Datagrams", "Annotated", "Status errors", "Incomplete")
	for _, e := range entries {
		if e.Err != nil {
			t.Row(e.Name, "error", e.Err.Error(), "", "", "")
			continue
		}
		s := e.Summary
		t.Row(e.Name, fmt.Sprint(s.Stats.TotalPackets), fmt.Sprint(s.Stats.MADPackets),
			fmt.Sprint(s.Decode.AnnotatedDatagrams), fmt.Sprint(s.Decode.StatusErrors), fmt.Sprint(s.Stalled))
	}
	fmt.Fprintln(w, t.Render())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
