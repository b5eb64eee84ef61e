// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics aggregates routing, provider, cache and learning signals
// and exposes both an in-memory percentile view and a Prometheus-facing one.
// Directly grounded on orchestrator/metrics_collector.go: a sync.RWMutex
// protected aggregate struct, a background systemMetricsUpdater goroutine,
// and a capped sample window per metric type for percentile computation.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"axonflow/corerouter/internal/types"
)

// DefaultRingSize is the default number of samples retained per metric type
// for percentile computation, per the spec's configurable-ring default.
const DefaultRingSize = 10000

// ring is a capped append-only float64 window; oldest samples are dropped.
type ring struct {
	values []float64
	cap    int
}

func newRing(capSize int) *ring {
	if capSize <= 0 {
		capSize = DefaultRingSize
	}
	return &ring{values: make([]float64, 0, capSize), cap: capSize}
}

func (r *ring) add(v float64) {
	r.values = append(r.values, v)
	if len(r.values) > r.cap {
		r.values = r.values[len(r.values)-r.cap:]
	}
}

func (r *ring) percentile(p int) float64 {
	if len(r.values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), r.values...)
	sort.Float64s(sorted)
	idx := (len(sorted) * p) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (r *ring) count() int { return len(r.values) }

// Snapshot is a point-in-time read of percentiles and counts for one
// MetricType.
type Snapshot struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Sum   float64 `json:"sum"`
}

// Collector is the Metrics Collector (component H): it records MetricEvents
// and exposes aggregated views for the routing cache, router, DQN agent and
// HTTP health/debug surface.
type Collector struct {
	mu      sync.RWMutex
	rings   map[types.MetricType]*ring
	ringCap int

	cacheHits   int64
	cacheMisses int64
	started     time.Time
	lastHealth  time.Time

	promCounter   *prometheus.CounterVec
	promHistogram *prometheus.HistogramVec
	registry      *prometheus.Registry

	stop chan struct{}
}

// Option configures a Collector.
type Option func(*Collector)

// WithRingSize overrides DefaultRingSize for every metric type's window.
func WithRingSize(n int) Option {
	return func(c *Collector) { c.ringCap = n }
}

// WithPrometheusRegistry registers the collector's counters/histograms into
// reg instead of creating a private one.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(c *Collector) { c.registry = reg }
}

// New creates a Collector and starts its background system-metrics updater.
func New(opts ...Option) *Collector {
	c := &Collector{
		rings:   make(map[types.MetricType]*ring),
		ringCap: DefaultRingSize,
		started: time.Now(),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	c.promCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axonflow",
		Subsystem: "corerouter",
		Name:      "metric_events_total",
		Help:      "Total metric events recorded, by metric_type.",
	}, []string{"metric_type"})
	c.promHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "axonflow",
		Subsystem: "corerouter",
		Name:      "metric_event_value",
		Help:      "Distribution of recorded metric event values, by metric_type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"metric_type"})
	c.registry.MustRegister(c.promCounter, c.promHistogram)

	go c.systemUpdater()
	return c
}

// Registry exposes the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record appends one sample to its metric type's ring and to the
// Prometheus-facing view.
func (c *Collector) Record(event types.MetricEvent) {
	c.mu.Lock()
	r, ok := c.rings[event.MetricType]
	if !ok {
		r = newRing(c.ringCap)
		c.rings[event.MetricType] = r
	}
	r.add(event.Value)
	switch event.MetricType {
	case types.MetricCacheHit:
		c.cacheHits++
	case types.MetricCacheMiss:
		c.cacheMisses++
	}
	c.mu.Unlock()

	c.promCounter.WithLabelValues(string(event.MetricType)).Inc()
	c.promHistogram.WithLabelValues(string(event.MetricType)).Observe(event.Value)
}

// RecordRoutingLatency is a convenience wrapper over Record for the
// router's hot path.
func (c *Collector) RecordRoutingLatency(d time.Duration, labels map[string]string) {
	c.Record(types.MetricEvent{Timestamp: time.Now(), MetricType: types.MetricRoutingLatency, Value: float64(d.Milliseconds()), Labels: labels})
}

// RecordProviderLatency is a convenience wrapper over Record for provider
// call instrumentation.
func (c *Collector) RecordProviderLatency(provider string, d time.Duration) {
	c.Record(types.MetricEvent{Timestamp: time.Now(), MetricType: types.MetricProviderLatency, Value: float64(d.Milliseconds()), Labels: map[string]string{"provider": provider}})
}

// CacheHitRate returns the fraction of cache lookups that hit, in [0,1].
func (c *Collector) CacheHitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.cacheHits + c.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(c.cacheHits) / float64(total)
}

// Snapshot returns a percentile/count view of one metric type's current
// window.
func (c *Collector) Snapshot(metricType types.MetricType) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rings[metricType]
	if !ok {
		return Snapshot{}
	}
	var sum float64
	for _, v := range r.values {
		sum += v
	}
	return Snapshot{
		Count: r.count(),
		P50:   r.percentile(50),
		P95:   r.percentile(95),
		P99:   r.percentile(99),
		Sum:   sum,
	}
}

// Uptime returns how long this collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.started)
}

// LastHealthCheck returns when the background updater last ran.
func (c *Collector) LastHealthCheck() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealth
}

// Close stops the background updater goroutine.
func (c *Collector) Close() {
	close(c.stop)
}

// systemUpdater periodically timestamps liveness, mirroring the teacher's
// systemMetricsUpdater polling loop.
func (c *Collector) systemUpdater() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.lastHealth = time.Now()
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
