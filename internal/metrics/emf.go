// Package metrics records counters and timings for the server. Every flushed
// Recorder updates an in-memory Store served by the metrics endpoint, and can
// also be written as a CloudWatch Embedded Metrics Format (EMF) line so that
// a log shipper can extract the same numbers.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Namespace is the EMF namespace used for every metric this server emits.
const Namespace = "DalleMCP"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

var (
	emfMu  sync.Mutex
	emfOut io.Writer
)

// SetEMFOutput directs EMF lines to w. A nil writer disables EMF output,
// which is the default. Stdout must not be used while serving MCP over stdio.
func SetEMFOutput(w io.Writer) {
	emfMu.Lock()
	emfOut = w
	emfMu.Unlock()
}

// Recorder accumulates dimensions, metrics, and properties for a single flush.
// It is NOT safe for concurrent use; create one per operation.
type Recorder struct {
	namespace  string
	store      *Store
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]float64
	properties map[string]interface{}
}

// New creates a Recorder that flushes into the Default store.
func New(namespace string) *Recorder {
	return &Recorder{
		namespace:  namespace,
		store:      Default,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]float64),
		properties: make(map[string]interface{}),
	}
}

// Into makes the Recorder flush into s instead of the Default store.
func (r *Recorder) Into(s *Store) *Recorder {
	r.store = s
	return r
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count records a count metric with value 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a non-metric field to the EMF document only.
func (r *Recorder) Property(key string, value interface{}) *Recorder {
	r.properties[key] = value
	return r
}

// Flush applies the recorded values to the store and, when EMF output is
// enabled, writes them as a single JSON line. The Recorder should not be
// reused afterwards.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	if r.store != nil {
		suffix := r.dimensionSuffix()
		for name, def := range r.metrics {
			if def.Unit == UnitMilliseconds {
				r.store.Observe(name+suffix, r.values[name])
			} else {
				r.store.Add(name+suffix, int64(r.values[name]))
			}
		}
	}

	emfMu.Lock()
	defer emfMu.Unlock()
	if emfOut == nil {
		return
	}

	data, err := r.marshalEMF(time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}
	fmt.Fprintln(emfOut, string(data))
}

func (r *Recorder) marshalEMF(now time.Time) ([]byte, error) {
	doc := make(map[string]interface{})

	metricDefs := make([]metricDef, 0, len(r.metrics))
	for _, m := range r.metrics {
		metricDefs = append(metricDefs, m)
	}
	sort.Slice(metricDefs, func(i, j int) bool { return metricDefs[i].Name < metricDefs[j].Name })

	doc["_aws"] = emfDirective{
		Timestamp: now.UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  r.namespace,
			Dimensions: [][]string{r.dimensionKeys()},
			Metrics:    metricDefs,
		}},
	}

	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.properties {
		doc[k] = v
	}

	return json.Marshal(doc)
}

func (r *Recorder) dimensionKeys() []string {
	keys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dimensionSuffix renders dimensions as "{k1=v1,k2=v2}" in key order.
func (r *Recorder) dimensionSuffix() string {
	if len(r.dimensions) == 0 {
		return ""
	}
	keys := r.dimensionKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.dimensions[k]
	}
	return "{" + strings.Join(parts, ",") + "}"
}
