package pcap

import (
	"fmt"
	"sort"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad"
	"github.com/tturner/madscope/internal/mad/attr"
	"github.com/tturner/madscope/internal/mad/tree"
)

// CoverageEntry counts one class/method/attribute combination seen in
// captures.
type CoverageEntry struct {
	Class         uint8  `json:"class"`
	Method        uint8  `json:"method"`
	Attribute     uint16 `json:"attribute"`
	ClassName     string `json:"class_name"`
	MethodName    string `json:"method_name"`
	AttributeName string `json:"attribute_name"`
	Count         int    `json:"count"`
	Annotated     int    `json:"annotated"`
	// Decoded is set when a field layout is registered for the attribute.
	Decoded bool `json:"decoded"`
}

// CoverageReport aggregates attribute coverage across captures.
type CoverageReport struct {
	Datagrams    int                       `json:"datagrams"`
	MethodCounts map[string]int            `json:"method_counts"`
	Entries      map[string]*CoverageEntry `json:"entries"`
	// Unrecognized counts class/attribute pairs that hit the unknown
	// attribute path.
	Unrecognized map[string]int `json:"unrecognized"`
}

func newCoverageReport() *CoverageReport {
	return &CoverageReport{
		MethodCounts: make(map[string]int),
		Entries:      make(map[string]*CoverageEntry),
		Unrecognized: make(map[string]int),
	}
}

// BuildCoverageReport tallies decoded datagrams. table decides which
// attributes count as decoded; nil selects the built-in table.
func BuildCoverageReport(datagrams []*dissect.Datagram, table *attr.Table) *CoverageReport {
	if table == nil {
		table = attr.DefaultTable()
	}
	report := newCoverageReport()
	for _, dg := range datagrams {
		if dg.Truncated {
			continue
		}
		report.Datagrams++
		e := dg.Envelope
		report.MethodCounts[dg.MethodName()]++

		key := coverageKey(e.MgmtClass, e.Method, e.AttributeID)
		entry := report.Entries[key]
		if entry == nil {
			_, known := table.Lookup(e.MgmtClass, e.AttributeID)
			entry = &CoverageEntry{
				Class:         e.MgmtClass,
				Method:        e.Method,
				Attribute:     e.AttributeID,
				ClassName:     dg.ClassName(),
				MethodName:    dg.MethodName(),
				AttributeName: dg.AttributeName(),
				Decoded:       known,
			}
			report.Entries[key] = entry
		}
		entry.Count++
		if dg.Worst() >= tree.SeverityWarn {
			entry.Annotated++
		}
		if dg.Count(tree.KindUnrecognizedAttribute) > 0 {
			report.Unrecognized[fmt.Sprintf("%s/0x%04X", mad.ClassName(e.MgmtClass), e.AttributeID)]++
		}
	}
	return report
}

// SummarizeCoverage decodes path with a fresh decoder and returns its
// coverage.
func SummarizeCoverage(path string, opts dissect.Options) (*CoverageReport, error) {
	opts.Reassembly = nil
	opts.Metrics = nil
	decoded, err := DecodeFile(path, dissect.New(opts))
	if err != nil {
		return nil, err
	}
	return BuildCoverageReport(decoded.Datagrams, opts.Attributes), nil
}

func coverageKey(class, method uint8, attribute uint16) string {
	return fmt.Sprintf("0x%02X/0x%02X/0x%04X", class, method, attribute)
}

// SortedCoverageEntries returns sorted coverage keys for stable output.
func SortedCoverageEntries(entries map[string]*CoverageEntry) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
