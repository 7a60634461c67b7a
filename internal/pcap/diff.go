package pcap

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tturner/madscope/internal/dissect"
	"github.com/tturner/madscope/internal/mad"
)

// DiffResult contains the comparison between two captures.
type DiffResult struct {
	BaselinePath string `json:"baseline_path"`
	ComparePath  string `json:"compare_path"`

	BaselinePacketCount   int `json:"baseline_packet_count"`
	ComparePacketCount    int `json:"compare_packet_count"`
	BaselineDatagramCount int `json:"baseline_datagram_count"`
	CompareDatagramCount  int `json:"compare_datagram_count"`

	BaselineOperations []OperationInfo `json:"baseline_operations"`
	CompareOperations  []OperationInfo `json:"compare_operations"`
	AddedOperations    []OperationInfo `json:"added_operations"`
	RemovedOperations  []OperationInfo `json:"removed_operations"`
	CommonOperations   []OperationInfo `json:"common_operations"`

	AddedClasses   []uint8 `json:"added_classes"`
	RemovedClasses []uint8 `json:"removed_classes"`
	CommonClasses  []uint8 `json:"common_classes"`

	BaselineTiming *TimingStats `json:"baseline_timing,omitempty"`
	CompareTiming  *TimingStats `json:"compare_timing,omitempty"`
}

// OperationInfo counts one class/method/attribute operation.
type OperationInfo struct {
	Class         uint8  `json:"class"`
	Method        uint8  `json:"method"`
	Attribute     uint16 `json:"attribute"`
	ClassName     string `json:"class_name"`
	MethodName    string `json:"method_name"`
	AttributeName string `json:"attribute_name"`
	IsResponse    bool   `json:"is_response"`
	Count         int    `json:"count"`
}

func (o OperationInfo) key() string {
	return coverageKey(o.Class, o.Method, o.Attribute)
}

// TimingStats holds request/response latency statistics.
type TimingStats struct {
	PacketCount  int     `json:"packet_count"`
	Unanswered   int     `json:"unanswered"`
	MinLatencyMs float64 `json:"min_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P50LatencyMs float64 `json:"p50_latency_ms"`
	P90LatencyMs float64 `json:"p90_latency_ms"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`

	RequestResponse []RequestResponsePair `json:"-"`
}

// RequestResponsePair is a request matched to its response by class and
// transaction ID.
type RequestResponsePair struct {
	Class         uint8     `json:"class"`
	TransactionID uint64    `json:"transaction_id"`
	RequestTime   time.Time `json:"request_time"`
	ResponseTime  time.Time `json:"response_time"`
	LatencyMs     float64   `json:"latency_ms"`
}

// DiffOptions configures capture comparison.
type DiffOptions struct {
	// Decode configures the decoder used for both captures. Each capture
	// gets its own reassembly table.
	Decode        dissect.Options
	IncludeTiming bool
	MaxLatencyGap time.Duration
}

// DefaultDiffOptions returns default diff options.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		IncludeTiming: true,
		MaxLatencyGap: 10 * time.Second,
	}
}

// DiffCaptures compares the management traffic of two captures.
func DiffCaptures(baselinePath, comparePath string, opts DiffOptions) (*DiffResult, error) {
	baseline, err := extractCaptureData(baselinePath, opts)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	compare, err := extractCaptureData(comparePath, opts)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	result := &DiffResult{
		BaselinePath:          baselinePath,
		ComparePath:           comparePath,
		BaselinePacketCount:   baseline.packets,
		ComparePacketCount:    compare.packets,
		BaselineDatagramCount: baseline.datagrams,
		CompareDatagramCount:  compare.datagrams,
		BaselineOperations:    operationMapToSlice(baseline.operations),
		CompareOperations:     operationMapToSlice(compare.operations),
	}
	result.AddedOperations, result.RemovedOperations, result.CommonOperations = diffOperations(baseline.operations, compare.operations)
	result.AddedClasses, result.RemovedClasses, result.CommonClasses = diffClasses(baseline.classes, compare.classes)

	if opts.IncludeTiming {
		result.BaselineTiming = computeTimingStats(baseline.pairs)
		result.BaselineTiming.Unanswered = baseline.unanswered
		result.CompareTiming = computeTimingStats(compare.pairs)
		result.CompareTiming.Unanswered = compare.unanswered
	}
	return result, nil
}

type captureData struct {
	packets    int
	datagrams  int
	operations map[string]OperationInfo
	classes    map[uint8]int
	pairs      []RequestResponsePair
	unanswered int
}

type pendingRequest struct {
	class uint8
	tid   uint64
}

func extractCaptureData(path string, opts DiffOptions) (*captureData, error) {
	decodeOpts := opts.Decode
	decodeOpts.Reassembly = nil
	decodeOpts.Metrics = nil
	decoded, err := DecodeFile(path, dissect.New(decodeOpts))
	if err != nil {
		return nil, err
	}
	data := &captureData{
		packets:    decoded.Stats.TotalPackets,
		operations: make(map[string]OperationInfo),
		classes:    make(map[uint8]int),
	}
	pending := make(map[pendingRequest]time.Time)

	for _, dg := range decoded.Datagrams {
		if dg.Truncated {
			continue
		}
		data.datagrams++
		e := dg.Envelope
		data.classes[e.MgmtClass]++

		op := OperationInfo{
			Class:         e.MgmtClass,
			Method:        e.Method,
			Attribute:     e.AttributeID,
			ClassName:     dg.ClassName(),
			MethodName:    dg.MethodName(),
			AttributeName: dg.AttributeName(),
			IsResponse:    e.Method&mad.MethodResponseBit != 0,
		}
		if existing, ok := data.operations[op.key()]; ok {
			op.Count = existing.Count
		}
		op.Count++
		data.operations[op.key()] = op

		if !opts.IncludeTiming {
			continue
		}
		key := pendingRequest{class: e.MgmtClass, tid: e.TransactionID}
		if !op.IsResponse {
			if _, seen := pending[key]; !seen {
				pending[key] = dg.Timestamp
			}
			continue
		}
		sent, ok := pending[key]
		if !ok {
			continue
		}
		delete(pending, key)
		gap := dg.Timestamp.Sub(sent)
		if gap < 0 || (opts.MaxLatencyGap > 0 && gap > opts.MaxLatencyGap) {
			continue
		}
		data.pairs = append(data.pairs, RequestResponsePair{
			Class:         e.MgmtClass,
			TransactionID: e.TransactionID,
			RequestTime:   sent,
			ResponseTime:  dg.Timestamp,
			LatencyMs:     gap.Seconds() * 1000,
		})
	}
	data.unanswered = len(pending)
	return data, nil
}

func operationMapToSlice(operations map[string]OperationInfo) []OperationInfo {
	keys := make([]string, 0, len(operations))
	for key := range operations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]OperationInfo, 0, len(keys))
	for _, key := range keys {
		out = append(out, operations[key])
	}
	return out
}

func diffOperations(baseline, compare map[string]OperationInfo) (added, removed, common []OperationInfo) {
	for _, op := range operationMapToSlice(compare) {
		if _, ok := baseline[op.key()]; ok {
			common = append(common, op)
		} else {
			added = append(added, op)
		}
	}
	for _, op := range operationMapToSlice(baseline) {
		if _, ok := compare[op.key()]; !ok {
			removed = append(removed, op)
		}
	}
	return added, removed, common
}

func diffClasses(baseline, compare map[uint8]int) (added, removed, common []uint8) {
	for class := range compare {
		if _, ok := baseline[class]; ok {
			common = append(common, class)
		} else {
			added = append(added, class)
		}
	}
	for class := range baseline {
		if _, ok := compare[class]; !ok {
			removed = append(removed, class)
		}
	}
	sortClasses := func(s []uint8) { sort.Slice(s, func(i, j int) bool { return s[i] < s[j] }) }
	sortClasses(added)
	sortClasses(removed)
	sortClasses(common)
	return added, removed, common
}

func computeTimingStats(pairs []RequestResponsePair) *TimingStats {
	if len(pairs) == 0 {
		return &TimingStats{}
	}

	stats := &TimingStats{
		PacketCount:     len(pairs),
		RequestResponse: pairs,
	}

	latencies := make([]float64, len(pairs))
	var sum float64
	for i, pair := range pairs {
		latencies[i] = pair.LatencyMs
		sum += pair.LatencyMs
		if i == 0 || pair.LatencyMs < stats.MinLatencyMs {
			stats.MinLatencyMs = pair.LatencyMs
		}
		if pair.LatencyMs > stats.MaxLatencyMs {
			stats.MaxLatencyMs = pair.LatencyMs
		}
	}
	stats.AvgLatencyMs = sum / float64(len(pairs))

	sort.Float64s(latencies)
	stats.P50LatencyMs = percentileValue(latencies, 0.50)
	stats.P90LatencyMs = percentileValue(latencies, 0.90)
	stats.P95LatencyMs = percentileValue(latencies, 0.95)
	stats.P99LatencyMs = percentileValue(latencies, 0.99)
	return stats
}

// percentileValue returns the value at the given percentile of a sorted
// slice.
func percentileValue(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func writeOperations(b *strings.Builder, ops []OperationInfo, prefix string) {
	for _, op := range ops {
		dir := "req"
		if op.IsResponse {
			dir = "rsp"
		}
		fmt.Fprintf(b, "%s%-14s %-18s %-24s %s Count:%d\n",
			prefix, op.ClassName, op.MethodName, op.AttributeName, dir, op.Count)
	}
}

func formatClasses(classes []uint8) string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = fmt.Sprintf("0x%02X (%s)", c, mad.ClassName(c))
	}
	return strings.Join(names, ", ")
}

// FormatDiffReport formats a DiffResult as a human-readable report.
func FormatDiffReport(result *DiffResult) string {
	var b strings.Builder
	rule := strings.Repeat("-", 60) + "\n"

	b.WriteString("Capture Diff Report\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Baseline: %s\n", result.BaselinePath)
	fmt.Fprintf(&b, "Compare:  %s\n\n", result.ComparePath)

	b.WriteString("Packet Counts:\n")
	fmt.Fprintf(&b, "  Baseline: %d packets, %d management datagrams\n",
		result.BaselinePacketCount, result.BaselineDatagramCount)
	fmt.Fprintf(&b, "  Compare:  %d packets, %d management datagrams\n\n",
		result.ComparePacketCount, result.CompareDatagramCount)

	b.WriteString("Operation Differences:\n")
	b.WriteString(rule)
	if len(result.AddedOperations) > 0 {
		b.WriteString("\n  ADDED (in compare, not in baseline):\n")
		writeOperations(&b, result.AddedOperations, "    + ")
	}
	if len(result.RemovedOperations) > 0 {
		b.WriteString("\n  REMOVED (in baseline, not in compare):\n")
		writeOperations(&b, result.RemovedOperations, "    - ")
	}
	if len(result.AddedOperations) == 0 && len(result.RemovedOperations) == 0 {
		b.WriteString("  No operation differences found.\n")
	}
	fmt.Fprintf(&b, "\n  Common operations: %d\n", len(result.CommonOperations))

	b.WriteString("\nManagement Class Differences:\n")
	b.WriteString(rule)
	if len(result.AddedClasses) > 0 {
		fmt.Fprintf(&b, "  ADDED: %s\n", formatClasses(result.AddedClasses))
	}
	if len(result.RemovedClasses) > 0 {
		fmt.Fprintf(&b, "  REMOVED: %s\n", formatClasses(result.RemovedClasses))
	}
	if len(result.AddedClasses) == 0 && len(result.RemovedClasses) == 0 {
		b.WriteString("  No class differences found.\n")
	}

	if result.BaselineTiming != nil && result.CompareTiming != nil {
		base, cmp := result.BaselineTiming, result.CompareTiming
		b.WriteString("\nLatency Analysis:\n")
		b.WriteString(rule)
		b.WriteString("                    Baseline        Compare         Delta\n")
		fmt.Fprintf(&b, "  Samples:          %-15d %-15d\n", base.PacketCount, cmp.PacketCount)
		fmt.Fprintf(&b, "  Unanswered:       %-15d %-15d\n", base.Unanswered, cmp.Unanswered)
		row := func(label string, bv, cv float64) {
			fmt.Fprintf(&b, "  %-17s %-15.3f %-15.3f %+.3f\n", label, bv, cv, cv-bv)
		}
		row("Min (ms):", base.MinLatencyMs, cmp.MinLatencyMs)
		row("Max (ms):", base.MaxLatencyMs, cmp.MaxLatencyMs)
		row("Avg (ms):", base.AvgLatencyMs, cmp.AvgLatencyMs)
		row("P50 (ms):", base.P50LatencyMs, cmp.P50LatencyMs)
		row("P95 (ms):", base.P95LatencyMs, cmp.P95LatencyMs)
		row("P99 (ms):", base.P99LatencyMs, cmp.P99LatencyMs)
	}

	return b.String()
}
