package pcap

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/metrics"
)

// Summary describes the management traffic in one capture.
type Summary struct {
	File    string          `json:"file"`
	Stats   ReadStats       `json:"stats"`
	Decode  metrics.Summary `json:"decode"`
	Stalled int             `json:"stalled_transfers"`
	// TsharkMADs is the tshark count of management datagrams, -1 when no
	// cross-check ran.
	TsharkMADs int `json:"tshark_mads"`
}

// Summarize decodes path with a fresh decoder built from opts and returns
// the aggregated statistics.
func Summarize(path string, opts dissect.Options) (*Summary, error) {
	sink := metrics.NewSink()
	opts.Metrics = sink
	opts.Reassembly = nil
	decoded, err := DecodeFile(path, dissect.New(opts))
	if err != nil {
		return nil, err
	}
	return &Summary{
		File:       path,
		Stats:      decoded.Stats,
		Decode:     *sink.GetSummary(),
		Stalled:    len(decoded.Stalled),
		TsharkMADs: -1,
	}, nil
}

// CompareWithTshark records how many management datagrams tshark's own
// dissector finds in the same file.
func (s *Summary) CompareWithTshark(tsharkPath string) error {
	n, err := CountTsharkMADs(tsharkPath, s.File)
	if err != nil {
		return err
	}
	s.TsharkMADs = n
	return nil
}

// SummaryEntry is one file's result in a directory summary.
type SummaryEntry struct {
	Name    string
	Path    string
	Summary *Summary
	Err     error
}

// BuildSummaryEntries summarizes every capture under root.
func BuildSummaryEntries(root string, opts dissect.Options) ([]SummaryEntry, error) {
	pcaps, err := CollectPcapFiles(root)
	if err != nil {
		return nil, err
	}
	entries := make([]SummaryEntry, 0, len(pcaps))
	for _, pcapPath := range pcaps {
		entry := SummaryEntry{Name: filepath.Base(pcapPath), Path: pcapPath}
		entry.Summary, entry.Err = Summarize(pcapPath, opts)
		entries = append(entries, entry)
	}
	return entries, nil
}

// tsharkMADFilter matches datagrams on the subnet and general service queue
// pairs.
const tsharkMADFilter = "infiniband.mad"

// CountTsharkMADs counts packets matching tshark's management datagram
// display filter.
func CountTsharkMADs(tsharkPath, pcapFile string) (int, error) {
	cmd := exec.Command(tsharkPath, "-r", pcapFile, "-Y", tsharkMADFilter, "-T", "fields", "-e", "frame.number")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("tshark: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return 0, nil
	}
	return len(strings.Split(out, "\n")), nil
}
