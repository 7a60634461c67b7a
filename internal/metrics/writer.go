package metrics

// Metrics output (CSV/JSON) and summary formatting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"frame",
	"class",
	"method",
	"attribute",
	"handler",
	"size",
	"decode_us",
	"status_error",
	"reassembly",
	"annotations",
}

// Writer handles writing metrics to files
type Writer struct {
	csvFile   *os.File
	csvWriter *csv.Writer
	jsonFile  *os.File
	jsonCount int
}

// NewWriter creates a new metrics writer
func NewWriter(csvPath, jsonPath string) (*Writer, error) {
	w := &Writer{}

	if csvPath != "" {
		file, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create CSV file: %w", err)
		}
		w.csvFile = file
		w.csvWriter = csv.NewWriter(file)
		if err := w.csvWriter.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.csvWriter.Flush()
	}

	if jsonPath != "" {
		file, err := os.Create(jsonPath)
		if err != nil {
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("create JSON file: %w", err)
		}
		w.jsonFile = file
		if _, err := file.WriteString("[\n"); err != nil {
			file.Close()
			if w.csvFile != nil {
				w.csvFile.Close()
			}
			return nil, fmt.Errorf("write JSON start: %w", err)
		}
	}

	return w, nil
}

// WriteMetric writes a single metric
func (w *Writer) WriteMetric(m Metric) error {
	if w.csvWriter != nil {
		record := []string{
			m.Timestamp.Format(time.RFC3339Nano),
			strconv.Itoa(m.Frame),
			m.Class,
			m.Method,
			m.Attribute,
			m.Handler,
			strconv.Itoa(m.Size),
			formatMicros(m.DecodeUs),
			strconv.FormatBool(m.StatusError),
			m.Reassembly,
			strings.Join(m.Annotations, ";"),
		}
		if err := w.csvWriter.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
		w.csvWriter.Flush()
	}

	if w.jsonFile != nil {
		jsonData, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if w.jsonCount > 0 {
			if _, err := w.jsonFile.WriteString(",\n"); err != nil {
				return fmt.Errorf("write JSON comma: %w", err)
			}
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, jsonData, "", "  "); err != nil {
			return fmt.Errorf("indent JSON: %w", err)
		}
		if _, err := w.jsonFile.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		w.jsonCount++
	}

	return nil
}

// Close closes the writer and flushes all data
func (w *Writer) Close() error {
	var errs []error

	if w.csvWriter != nil {
		w.csvWriter.Flush()
	}
	if w.csvFile != nil {
		if err := w.csvFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.jsonFile != nil {
		if _, err := w.jsonFile.WriteString("\n]\n"); err != nil {
			errs = append(errs, err)
		}
		if err := w.jsonFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close writer: %v", errs)
	}
	return nil
}

// formatMicros formats a latency for CSV (empty string if 0)
func formatMicros(us float64) string {
	if us == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", us)
}

// FormatSummary formats a summary for human-readable output
func FormatSummary(summary *Summary) string {
	var b strings.Builder
	if summary.TotalDatagrams == 0 {
		b.WriteString("Total Datagrams: 0\n")
		return b.String()
	}

	pct := func(n int) float64 { return float64(n) / float64(summary.TotalDatagrams) * 100 }
	fmt.Fprintf(&b, "Total Datagrams: %d (%d bytes)\n", summary.TotalDatagrams, summary.TotalBytes)
	fmt.Fprintf(&b, "Clean: %d (%.1f%%)\n", summary.CleanDatagrams, pct(summary.CleanDatagrams))
	fmt.Fprintf(&b, "Annotated: %d (%.1f%%)\n", summary.AnnotatedDatagrams, pct(summary.AnnotatedDatagrams))
	if summary.StatusErrors > 0 {
		fmt.Fprintf(&b, "Error Status: %d\n", summary.StatusErrors)
	}
	if summary.CompletedTransfers > 0 {
		fmt.Fprintf(&b, "Reassembled Transfers: %d\n", summary.CompletedTransfers)
	}

	if summary.AvgDecodeUs > 0 {
		b.WriteString("\nDecode Time:\n")
		fmt.Fprintf(&b, "  Min: %.3f us\n", summary.MinDecodeUs)
		fmt.Fprintf(&b, "  Max: %.3f us\n", summary.MaxDecodeUs)
		fmt.Fprintf(&b, "  Avg: %.3f us\n", summary.AvgDecodeUs)
		fmt.Fprintf(&b, "  P50: %.3f us\n", summary.P50DecodeUs)
		fmt.Fprintf(&b, "  P90: %.3f us\n", summary.P90DecodeUs)
		fmt.Fprintf(&b, "  P99: %.3f us\n", summary.P99DecodeUs)
		if len(summary.DecodeBuckets) > 0 {
			fmt.Fprintf(&b, "  Buckets: <10us=%d 10-50us=%d 50-100us=%d 100-500us=%d 500us-1ms=%d >1ms=%d\n",
				summary.DecodeBuckets["lt_10us"],
				summary.DecodeBuckets["10_50us"],
				summary.DecodeBuckets["50_100us"],
				summary.DecodeBuckets["100_500us"],
				summary.DecodeBuckets["500us_1ms"],
				summary.DecodeBuckets["gt_1ms"],
			)
		}
	}

	if len(summary.ByClass) > 0 {
		b.WriteString("\nPer-Class Statistics:\n")
		for _, class := range sortedKeys(summary.ByClass) {
			stats := summary.ByClass[class]
			fmt.Fprintf(&b, "  %s: %d datagrams, %d bytes (%d annotated, %d error status)\n",
				class, stats.Count, stats.Bytes, stats.Annotated, stats.StatusErrors)
		}
	}
	writeCounts(&b, "Methods", summary.ByMethod)
	writeCounts(&b, "Attributes", summary.ByAttribute)
	writeCounts(&b, "Annotations", summary.Annotations)
	writeCounts(&b, "Reassembly", summary.Reassembly)

	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, k := range sortedKeys(counts) {
		fmt.Fprintf(b, "  %s: %d\n", k, counts[k])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
