package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadMetricsCSV reads a metrics CSV file and returns the parsed metrics along
// with the first and last timestamps found in the data.
func ReadMetricsCSV(path string) ([]Metric, time.Time, time.Time, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("open metrics CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("read CSV header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[col] = i
	}
	for _, col := range []string{"timestamp", "class", "method", "attribute"} {
		if _, ok := colIndex[col]; !ok {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("CSV missing required column: %s", col)
		}
	}

	var metrics []Metric
	var firstTime, lastTime time.Time
	rowCount := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, time.Time{}, time.Time{}, fmt.Errorf("read CSV row %d: %w", rowCount+2, err)
		}

		field := func(name string) string {
			if idx, ok := colIndex[name]; ok && idx < len(record) {
				return record[idx]
			}
			return ""
		}

		m := Metric{
			Class:      field("class"),
			Method:     field("method"),
			Attribute:  field("attribute"),
			Handler:    field("handler"),
			Reassembly: field("reassembly"),
		}
		if t, err := time.Parse(time.RFC3339Nano, field("timestamp")); err == nil {
			m.Timestamp = t
			if rowCount == 0 {
				firstTime = t
			}
			lastTime = t
		}
		if v, err := strconv.Atoi(field("frame")); err == nil {
			m.Frame = v
		}
		if v, err := strconv.Atoi(field("size")); err == nil {
			m.Size = v
		}
		if v, err := strconv.ParseFloat(field("decode_us"), 64); err == nil {
			m.DecodeUs = v
		}
		m.StatusError = field("status_error") == "true"
		if a := field("annotations"); a != "" {
			m.Annotations = strings.Split(a, ";")
		}

		metrics = append(metrics, m)
		rowCount++
	}

	if rowCount == 0 {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("no data rows in CSV file")
	}

	return metrics, firstTime, lastTime, nil
}
