package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry holds named counters, gauges and histograms and renders
// them in the Prometheus text exposition format. It is a small dependency-free
// replacement for the full client library, enough for a /metrics endpoint.
type MetricsRegistry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Counter is a monotonically increasing value.
type Counter struct {
	mu     sync.Mutex
	name   string
	help   string
	labels map[string]string
	value  float64
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Add(v float64) {
	if v < 0 {
		return
	}
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Gauge is a value that can move in both directions.
type Gauge struct {
	mu     sync.Mutex
	name   string
	help   string
	labels map[string]string
	value  float64
}

func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() { g.Add(1) }
func (g *Gauge) Dec() { g.Add(-1) }

func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Histogram tracks the distribution of observed values across fixed buckets.
// Bucket counts are rendered cumulatively, as Prometheus expects.
type Histogram struct {
	mu      sync.Mutex
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, upper := range h.buckets {
		if v <= upper {
			h.counts[i]++
			break
		}
	}
}

// ObserveDuration records the seconds elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// DefaultBuckets covers latencies from a millisecond up to a minute.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
}

func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	key := name + formatLabels(labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: copyLabels(labels)}
	r.counters[key] = c
	return c
}

func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	key := name + formatLabels(labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: copyLabels(labels)}
	r.gauges[key] = g
	return g
}

func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets()
	}
	key := name + formatLabels(labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[key]; ok {
		return h
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  copyLabels(labels),
		buckets: append([]float64(nil), buckets...),
		counts:  make([]uint64, len(buckets)),
	}
	r.histograms[key] = h
	return h
}

// Handler serves the registry in the Prometheus text format.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus renders every registered metric, sorted by name so the
// output is stable across scrapes.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range sortedKeys(r.counters) {
		c := r.counters[key]
		c.mu.Lock()
		writeScalar(w, c.name, c.help, "counter", c.labels, c.value)
		c.mu.Unlock()
	}
	for _, key := range sortedKeys(r.gauges) {
		g := r.gauges[key]
		g.mu.Lock()
		writeScalar(w, g.name, g.help, "gauge", g.labels, g.value)
		g.mu.Unlock()
	}
	for _, key := range sortedKeys(r.histograms) {
		h := r.histograms[key]
		h.mu.Lock()
		writeHistogram(w, h)
		h.mu.Unlock()
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeScalar(w io.Writer, name, help, typ string, labels map[string]string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, typ)
	fmt.Fprintf(w, "%s%s %s\n", name, formatLabels(labels), formatFloat(value))
}

func writeHistogram(w io.Writer, h *Histogram) {
	fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)

	var cumulative uint64
	for i, upper := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket%s %s\n",
			h.name, labelsWithLE(h.labels, formatFloat(upper)), formatUint(cumulative))
	}
	fmt.Fprintf(w, "%s_bucket%s %s\n", h.name, labelsWithLE(h.labels, "+Inf"), formatUint(h.count))
	fmt.Fprintf(w, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count%s %s\n", h.name, formatLabels(h.labels), formatUint(h.count))
}

// formatLabels renders a label set as {k="v",...} with keys sorted, or an
// empty string when there are no labels.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := sortedKeys(labels)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// labelsWithLE appends the le bucket label to an existing label set.
func labelsWithLE(labels map[string]string, le string) string {
	merged := copyLabels(labels)
	if merged == nil {
		merged = make(map[string]string, 1)
	}
	merged["le"] = le
	return formatLabels(merged)
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// DocflowMetrics bundles the counters the pipeline, retrieval service and
// LLM layer report. Access the shared instance through Metrics.
type DocflowMetrics struct {
	Registry *MetricsRegistry

	IngestsTotal       *Counter
	IngestsFailedTotal *Counter
	IngestDuration     *Histogram
	ChunksIndexedTotal *Counter

	LLMRequestsTotal   *Counter
	LLMRequestDuration *Histogram
	LLMErrorsTotal     *Counter

	SearchesTotal  *Counter
	SearchDuration *Histogram

	DocumentsProcessing *Gauge
}

func NewDocflowMetrics() *DocflowMetrics {
	r := NewMetricsRegistry()
	return &DocflowMetrics{
		Registry: r,

		IngestsTotal:       r.NewCounter("docflow_ingests_total", "Total document ingests started", nil),
		IngestsFailedTotal: r.NewCounter("docflow_ingests_failed_total", "Document ingests that ended in failure", nil),
		IngestDuration:     r.NewHistogram("docflow_ingest_duration_seconds", "End-to-end ingest duration", nil, nil),
		ChunksIndexedTotal: r.NewCounter("docflow_chunks_indexed_total", "Chunks written to the vector index", nil),

		LLMRequestsTotal:   r.NewCounter("docflow_llm_requests_total", "LLM completion and embedding requests", nil),
		LLMRequestDuration: r.NewHistogram("docflow_llm_request_duration_seconds", "LLM request duration", nil, nil),
		LLMErrorsTotal:     r.NewCounter("docflow_llm_errors_total", "LLM requests that returned an error", nil),

		SearchesTotal:  r.NewCounter("docflow_searches_total", "Semantic search requests", nil),
		SearchDuration: r.NewHistogram("docflow_search_duration_seconds", "Semantic search duration", nil, nil),

		DocumentsProcessing: r.NewGauge("docflow_documents_processing", "Documents currently in the pipeline", nil),
	}
}

func (m *DocflowMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordIngest accounts for one finished ingest, successful or not.
func (m *DocflowMetrics) RecordIngest(d time.Duration, chunks int, err error) {
	m.IngestsTotal.Inc()
	m.IngestDuration.Observe(d.Seconds())
	if err != nil {
		m.IngestsFailedTotal.Inc()
		return
	}
	m.ChunksIndexedTotal.Add(float64(chunks))
}

func (m *DocflowMetrics) RecordLLMRequest(d time.Duration, err error) {
	m.LLMRequestsTotal.Inc()
	m.LLMRequestDuration.Observe(d.Seconds())
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

func (m *DocflowMetrics) RecordSearch(d time.Duration) {
	m.SearchesTotal.Inc()
	m.SearchDuration.Observe(d.Seconds())
}

var (
	globalMetrics     *DocflowMetrics
	globalMetricsOnce sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *DocflowMetrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = NewDocflowMetrics()
	})
	return globalMetrics
}
