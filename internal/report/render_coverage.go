package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tturner/madscope/internal/pcap"
)

// CoverageReport is the JSON form of an attribute coverage run.
type CoverageReport struct {
	GeneratedAt     string               `json:"generated_at"`
	MadscopeVersion string               `json:"madscope_version"`
	Input           string               `json:"input"`
	Coverage        *pcap.CoverageReport `json:"coverage"`
	Errors          []FileError          `json:"errors,omitempty"`
}

// NewCoverageReport wraps a coverage result and its per-file errors.
func NewCoverageReport(version, input string, coverage *pcap.CoverageReport, fileErrors []pcap.CoverageFileError) CoverageReport {
	r := CoverageReport{
		GeneratedAt:     FormatTimestamp(),
		MadscopeVersion: version,
		Input:           input,
		Coverage:        coverage,
	}
	for _, fe := range fileErrors {
		r.Errors = append(r.Errors, FileError{Path: fe.Path, Error: fe.Err.Error()})
	}
	return r
}

// WriteCoverage writes the class/method/attribute coverage table.
func WriteCoverage(w io.Writer, c *pcap.CoverageReport, fileErrors []pcap.CoverageFileError) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)

	decoded := 0
	for _, e := range c.Entries {
		if e.Decoded {
			decoded++
		}
	}
	fmt.Fprintln(w, title.Render("Attribute Coverage"))
	fmt.Fprintf(w, "  Datagrams: %d\n", c.Datagrams)
	fmt.Fprintf(w, "  Operations: %d (%d with a decoder)\n", len(c.Entries), decoded)

	if len(c.Entries) > 0 {
		t := table.New().Border(lipgloss.NormalBorder()).BorderStyle(r.NewStyle()).
			Headers("Class", "Method", "Attribute", "Count", "Annotated", "Decoder")
		for _, key := range pcap.SortedCoverageEntries(c.Entries) {
			e := c.Entries[key]
			decoder := "no"
			if e.Decoded {
				decoder = "yes"
			}
			t.Row(e.ClassName, e.MethodName, fmt.Sprintf("%s (0x%04X)", e.AttributeName, e.Attribute),
				fmt.Sprint(e.Count), fmt.Sprint(e.Annotated), decoder)
		}
		fmt.Fprintln(w, t.Render())
	}
	if len(c.MethodCounts) > 0 {
		fmt.Fprintln(w, "  Methods:")
		for _, name := range sortedKeys(c.MethodCounts) {
			fmt.Fprintf(w, "    %s: %d\n", name, c.MethodCounts[name])
		}
	}
	if len(c.Unrecognized) > 0 {
		fmt.Fprintln(w, "  Unrecognized attributes:")
		for _, name := range sortedKeys(c.Unrecognized) {
			fmt.Fprintf(w, "    %s: %d\n", name, c.Unrecognized[name])
		}
	}
	if len(fileErrors) > 0 {
		fmt.Fprintln(w, "  Errors:")
		for _, fe := range fileErrors {
			fmt.Fprintf(w, "    %s: %v\n", fe.Name, fe.Err)
		}
	}
}
