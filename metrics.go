package httpcore

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters tracks the process-wide state from spec §3.7: a monotonic
// connection-id sequence, live/total connection counts, total requests
// served, and a map of live engines keyed by connection id. All numeric
// fields are updated atomically; the live-engine map guards itself with a
// mutex, matching spec §5's "concurrent map keyed on connection_id".
type Counters struct {
	nextConnectionID atomic.Int64
	openConnections  atomic.Int64
	totalConnections atomic.Int64
	totalRequests    atomic.Int64

	mu     sync.Mutex
	engines map[int64]*Engine

	connectionsOpened prometheus.Counter
	connectionsLive   prometheus.Gauge
	requestsServed    prometheus.Counter
}

// NewCounters returns a fresh Counters, registering its gauges/counters
// with reg (pass nil to skip Prometheus registration entirely).
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		engines: make(map[int64]*Engine),
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_connections_opened_total",
			Help: "Total TCP connections accepted by the engine.",
		}),
		connectionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpcore_connections_live",
			Help: "Currently open connections being served by the engine.",
		}),
		requestsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_requests_served_total",
			Help: "Total HTTP requests fully served across all connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.connectionsOpened, c.connectionsLive, c.requestsServed)
	}
	return c
}

// register allocates the next monotonic connection id and
// registers the engine under it.
func (c *Counters) register(e *Engine) int64 {
	id := c.nextConnectionID.Add(1)
	c.openConnections.Add(1)
	c.totalConnections.Add(1)
	c.connectionsOpened.Inc()
	c.connectionsLive.Inc()

	c.mu.Lock()
	c.engines[id] = e
	c.mu.Unlock()
	return id
}

func (c *Counters) unregister(id int64) {
	c.openConnections.Add(-1)
	c.connectionsLive.Dec()
	c.mu.Lock()
	delete(c.engines, id)
	c.mu.Unlock()
}

func (c *Counters) requestServed() {
	c.totalRequests.Add(1)
	c.requestsServed.Inc()
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() (open, total, requests int64) {
	return c.openConnections.Load(), c.totalConnections.Load(), c.totalRequests.Load()
}

// IsHighLoad reports whether current load should disable keep-alive and
// shrink buffers, per spec §5's "under high load" signal: current open
// connections at or above half of max, or an externally supplied queue
// depth above threshold.
func (c *Counters) IsHighLoad(maxConnections int64, queueDepth, queueThreshold int) bool {
	if maxConnections > 0 && c.openConnections.Load() >= maxConnections/2 {
		return true
	}
	return queueThreshold > 0 && queueDepth > queueThreshold
}

// LiveEngine returns the engine registered under connectionID, if any.
func (c *Counters) LiveEngine(connectionID int64) (*Engine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.engines[connectionID]
	return e, ok
}
