package metrics

// Decode statistics for management datagrams

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Metric describes one decoded datagram
type Metric struct {
	Timestamp   time.Time `json:"timestamp"`
	Frame       int       `json:"frame"`
	Class       string    `json:"class"`
	Method      string    `json:"method"`
	Attribute   string    `json:"attribute"`
	Handler     string    `json:"handler"`
	Size        int       `json:"size"`
	DecodeUs    float64   `json:"decode_us"`
	StatusError bool      `json:"status_error"`
	Reassembly  string    `json:"reassembly,omitempty"`
	Annotations []string  `json:"annotations,omitempty"`
}

// Sink collects and aggregates metrics
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
	summary *Summary
}

func newSummary() *Summary {
	return &Summary{
		DecodeBuckets: make(map[string]int),
		ByClass:       make(map[string]*ClassStats),
		ByMethod:      make(map[string]int),
		ByAttribute:   make(map[string]int),
		Annotations:   make(map[string]int),
		Reassembly:    make(map[string]int),
	}
}

// Summary contains aggregated statistics
type Summary struct {
	TotalDatagrams     int
	CleanDatagrams     int
	AnnotatedDatagrams int
	StatusErrors       int
	CompletedTransfers int
	TotalBytes         int
	MinDecodeUs        float64
	MaxDecodeUs        float64
	AvgDecodeUs        float64
	P50DecodeUs        float64
	P90DecodeUs        float64
	P95DecodeUs        float64
	P99DecodeUs        float64
	DecodeBuckets      map[string]int
	ByClass            map[string]*ClassStats
	ByMethod           map[string]int
	ByAttribute        map[string]int
	Annotations        map[string]int
	Reassembly         map[string]int
}

// ClassStats contains statistics for one management class
type ClassStats struct {
	Count        int
	Bytes        int
	StatusErrors int
	Annotated    int
}

// NewSink creates a new metrics sink
func NewSink() *Sink {
	return &Sink{
		metrics: make([]Metric, 0),
		summary: newSummary(),
	}
}

// Record records a new metric
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
}

// GetMetrics returns a copy of all recorded metrics
func (s *Sink) GetMetrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// GetSummary returns a copy of the aggregated summary
func (s *Sink) GetSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.summary
	summary := newSummary()
	summary.TotalDatagrams = src.TotalDatagrams
	summary.CleanDatagrams = src.CleanDatagrams
	summary.AnnotatedDatagrams = src.AnnotatedDatagrams
	summary.StatusErrors = src.StatusErrors
	summary.CompletedTransfers = src.CompletedTransfers
	summary.TotalBytes = src.TotalBytes
	summary.MinDecodeUs = src.MinDecodeUs
	summary.MaxDecodeUs = src.MaxDecodeUs
	summary.AvgDecodeUs = src.AvgDecodeUs

	for class, stats := range src.ByClass {
		c := *stats
		summary.ByClass[class] = &c
	}
	copyCounts(summary.ByMethod, src.ByMethod)
	copyCounts(summary.ByAttribute, src.ByAttribute)
	copyCounts(summary.Annotations, src.Annotations)
	copyCounts(summary.Reassembly, src.Reassembly)

	percentiles, buckets := summarizeDistribution(s.metrics)
	summary.P50DecodeUs = percentiles[0]
	summary.P90DecodeUs = percentiles[1]
	summary.P95DecodeUs = percentiles[2]
	summary.P99DecodeUs = percentiles[3]
	copyCounts(summary.DecodeBuckets, buckets)

	return summary
}

// Summarize builds a summary from already collected metrics.
func Summarize(metrics []Metric) *Summary {
	sink := NewSink()
	for _, m := range metrics {
		sink.Record(m)
	}
	return sink.GetSummary()
}

// updateSummary updates the summary statistics with a new metric
func (s *Sink) updateSummary(m Metric) {
	sum := s.summary
	sum.TotalDatagrams++
	sum.TotalBytes += m.Size

	if len(m.Annotations) == 0 {
		sum.CleanDatagrams++
	} else {
		sum.AnnotatedDatagrams++
	}
	if m.StatusError {
		sum.StatusErrors++
	}
	if m.Reassembly != "" {
		sum.Reassembly[m.Reassembly]++
		if m.Reassembly == "complete" {
			sum.CompletedTransfers++
		}
	}
	for _, kind := range m.Annotations {
		sum.Annotations[kind]++
	}
	sum.ByMethod[m.Method]++
	sum.ByAttribute[m.Class+" "+m.Attribute]++

	stats, ok := sum.ByClass[m.Class]
	if !ok {
		stats = &ClassStats{}
		sum.ByClass[m.Class] = stats
	}
	stats.Count++
	stats.Bytes += m.Size
	if m.StatusError {
		stats.StatusErrors++
	}
	if len(m.Annotations) > 0 {
		stats.Annotated++
	}

	if m.DecodeUs > 0 {
		if sum.MinDecodeUs == 0 || m.DecodeUs < sum.MinDecodeUs {
			sum.MinDecodeUs = m.DecodeUs
		}
		if m.DecodeUs > sum.MaxDecodeUs {
			sum.MaxDecodeUs = m.DecodeUs
		}
		total := sum.AvgDecodeUs * float64(sum.TotalDatagrams-1)
		sum.AvgDecodeUs = (total + m.DecodeUs) / float64(sum.TotalDatagrams)
	}
}

func copyCounts(dst, src map[string]int) {
	for k, v := range src {
		dst[k] = v
	}
}

func summarizeDistribution(metrics []Metric) ([4]float64, map[string]int) {
	values := make([]float64, 0, len(metrics))
	buckets := make(map[string]int)
	for _, m := range metrics {
		if m.DecodeUs > 0 {
			values = append(values, m.DecodeUs)
			incrementBucket(buckets, m.DecodeUs)
		}
	}
	return computePercentiles(values), buckets
}

func incrementBucket(buckets map[string]int, us float64) {
	switch {
	case us < 10:
		buckets["lt_10us"]++
	case us < 50:
		buckets["10_50us"]++
	case us < 100:
		buckets["50_100us"]++
	case us < 500:
		buckets["100_500us"]++
	case us < 1000:
		buckets["500us_1ms"]++
	default:
		buckets["gt_1ms"]++
	}
}

func computePercentiles(values []float64) [4]float64 {
	var result [4]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.95)
	result[3] = percentile(values, 0.99)
	return result
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
