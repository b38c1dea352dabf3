package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
)

// Metric is a single recorded measurement
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

// Collector buffers run metrics and flushes them to the log. Counter totals
// survive flushes so they can be served as a snapshot.
type Collector struct {
	mu      sync.RWMutex
	metrics []Metric
	totals  map[string]float64
	enabled bool
	flushCh chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewCollector creates a collector. A disabled collector drops everything.
func NewCollector(enabled bool) *Collector {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		metrics: make([]Metric, 0),
		totals:  make(map[string]float64),
		enabled: enabled,
		flushCh: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	if enabled {
		go c.periodicFlush()
	}

	return c
}

// Count increments a counter metric
func (c *Collector) Count(name string, value float64, labels map[string]string) {
	if !c.enabled {
		return
	}

	c.addMetric(Metric{
		Name:      name,
		Type:      Counter,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	})
}

// Time records a duration measurement
func (c *Collector) Time(name string, duration time.Duration, labels map[string]string) {
	if !c.enabled {
		return
	}

	c.addMetric(Metric{
		Name:      name,
		Type:      Timer,
		Value:     float64(duration.Milliseconds()),
		Labels:    labels,
		Timestamp: time.Now(),
		Unit:      "ms",
	})
}

func (c *Collector) addMetric(metric Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = append(c.metrics, metric)
	if metric.Type == Counter {
		c.totals[metric.Name] += metric.Value
	}

	// Trigger a flush when the buffer grows large
	if len(c.metrics) >= 100 {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns the accumulated counter totals. Used by the agent metrics
// endpoint and the end-of-run summary.
func (c *Collector) Snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(c.totals))
	for k, v := range c.totals {
		out[k] = v
	}
	return out
}

// Flush writes the buffered metrics to the log and clears the buffer.
func (c *Collector) Flush() error {
	c.mu.Lock()
	metrics := make([]Metric, len(c.metrics))
	copy(metrics, c.metrics)
	c.metrics = c.metrics[:0]
	c.mu.Unlock()

	if len(metrics) == 0 {
		return nil
	}

	for _, metric := range metrics {
		log.Debug().
			Str("name", metric.Name).
			Str("type", string(metric.Type)).
			Float64("value", metric.Value).
			Interface("labels", metric.Labels).
			Msg("metric")
	}

	return nil
}

// periodicFlush flushes metrics every 30 seconds
func (c *Collector) periodicFlush() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = c.Flush()
		case <-c.flushCh:
			_ = c.Flush()
		}
	}
}

// Shutdown stops the collector and flushes what is left.
func (c *Collector) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}
	return c.Flush()
}

// Global collector instance
var (
	globalMu        sync.Mutex
	globalCollector *Collector
)

// InitGlobal initializes the global telemetry collector
func InitGlobal(enabled bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCollector = NewCollector(enabled)
}

// GetGlobal returns the global collector
func GetGlobal() *Collector {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCollector == nil {
		globalCollector = NewCollector(false)
	}
	return globalCollector
}

// CountGlobal increments a counter using the global collector
func CountGlobal(name string, value float64, labels map[string]string) {
	GetGlobal().Count(name, value, labels)
}

// TimeGlobal records a timer using the global collector
func TimeGlobal(name string, duration time.Duration, labels map[string]string) {
	GetGlobal().Time(name, duration, labels)
}

// Shutdown shuts down the global collector
func Shutdown() error {
	globalMu.Lock()
	c := globalCollector
	globalMu.Unlock()
	if c != nil {
		return c.Shutdown()
	}
	return nil
}
