package report

import (
	"time"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad/tree"
	"github.com/tturner/madscope/internal/pcap"
)

// DecodeReport is the JSON form of a decode run.
type DecodeReport struct {
	GeneratedAt     string              `json:"generated_at"`
	MadscopeVersion string              `json:"madscope_version"`
	Input           string              `json:"input"`
	Reassembly      bool                `json:"reassembly"`
	Stats           *pcap.ReadStats     `json:"stats,omitempty"`
	Datagrams       []*dissect.Datagram `json:"datagrams"`
	Stalled         []tree.Annotation   `json:"stalled,omitempty"`
}

// SummaryReport is the JSON form of one or more capture summaries.
type SummaryReport struct {
	GeneratedAt     string          `json:"generated_at"`
	MadscopeVersion string          `json:"madscope_version"`
	Summaries       []*pcap.Summary `json:"summaries"`
	Errors          []FileError     `json:"errors,omitempty"`
}

// FileError records a capture that could not be summarized.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// NewDecodeReport wraps a decoded capture.
func NewDecodeReport(version, input string, reassembly bool, decoded *pcap.Decoded) DecodeReport {
	r := DecodeReport{
		GeneratedAt:     FormatTimestamp(),
		MadscopeVersion: version,
		Input:           input,
		Reassembly:      reassembly,
		Datagrams:       decoded.Datagrams,
		Stalled:         decoded.Stalled,
	}
	if decoded.Stats.TotalPackets > 0 {
		stats := decoded.Stats
		r.Stats = &stats
	}
	if r.Datagrams == nil {
		r.Datagrams = []*dissect.Datagram{}
	}
	return r
}

// NewSummaryReport collects directory summary entries.
func NewSummaryReport(version string, entries []pcap.SummaryEntry) SummaryReport {
	r := SummaryReport{GeneratedAt: FormatTimestamp(), MadscopeVersion: version, Summaries: []*pcap.Summary{}}
	for _, e := range entries {
		if e.Err != nil {
			r.Errors = append(r.Errors, FileError{Path: e.Path, Error: e.Err.Error()})
			continue
		}
		r.Summaries = append(r.Summaries, e.Summary)
	}
	return r
}

// now is the report clock.
var now = time.Now

// FormatTimestamp returns the report generation time as RFC3339 UTC.
func FormatTimestamp() string {
	return now().UTC().Format(time.RFC3339)
}
