package pcap

import (
	"path/filepath"

	"github.com/tturner/madscope/internal/dissect"
)

// CoverageFileError captures a per-file coverage error.
type CoverageFileError struct {
	Name string
	Path string
	Err  error
}

// AggregateCoverageReport summarizes coverage across all captures under
// root.
func AggregateCoverageReport(root string, opts dissect.Options) (*CoverageReport, []CoverageFileError, error) {
	pcaps, err := CollectPcapFiles(root)
	if err != nil {
		return nil, nil, err
	}
	aggregate := newCoverageReport()
	fileErrors := make([]CoverageFileError, 0)

	for _, pcapPath := range pcaps {
		report, err := SummarizeCoverage(pcapPath, opts)
		if err != nil {
			fileErrors = append(fileErrors, CoverageFileError{
				Name: filepath.Base(pcapPath),
				Path: pcapPath,
				Err:  err,
			})
			continue
		}
		mergeCoverage(aggregate, report)
	}

	return aggregate, fileErrors, nil
}

func mergeCoverage(dst, src *CoverageReport) {
	dst.Datagrams += src.Datagrams
	for method, count := range src.MethodCounts {
		dst.MethodCounts[method] += count
	}
	for key, entry := range src.Entries {
		dstEntry := dst.Entries[key]
		if dstEntry == nil {
			clone := *entry
			dst.Entries[key] = &clone
			continue
		}
		dstEntry.Count += entry.Count
		dstEntry.Annotated += entry.Annotated
	}
	for key, count := range src.Unrecognized {
		dst.Unrecognized[key] += count
	}
}
