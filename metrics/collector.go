// Package metrics provides per-engine metrics collection.
//
// The Collector accumulates counters over an engine's lifetime. It is a
// leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so callers never have to guard instrumentation.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of engine metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Execution lifecycle
	ExecutionsStarted   int64
	ExecutionsSucceeded int64
	ExecutionsFailed    int64

	// Host boundary
	HostLaunchSuccess int64
	HostLaunchFailure int64
	HostFaults        int64
	DecodeErrors      int64

	// Variable context (stateful mode)
	ContextValuesPersisted int64
	ContextValuesDropped   int64

	// Dimensions (informational, set at construction)
	EngineID string
	Mode     string
	Boundary string
}

// Collector accumulates metrics for a single engine instance.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	executionsStarted   int64
	executionsSucceeded int64
	executionsFailed    int64

	hostLaunchSuccess int64
	hostLaunchFailure int64
	hostFaults        int64
	decodeErrors      int64

	contextValuesPersisted int64
	contextValuesDropped   int64

	engineID string
	mode     string
	boundary string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(engineID, mode, boundary string) *Collector {
	return &Collector{
		engineID: engineID,
		mode:     mode,
		boundary: boundary,
	}
}

// IncExecutionStarted increments the executions-started counter.
func (c *Collector) IncExecutionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executionsStarted++
}

// IncExecutionSucceeded increments the executions-succeeded counter.
func (c *Collector) IncExecutionSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executionsSucceeded++
}

// IncExecutionFailed increments the executions-failed counter.
// Counts evaluation failures, not host faults.
func (c *Collector) IncExecutionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executionsFailed++
}

// IncHostLaunchSuccess increments the host-launch-success counter.
func (c *Collector) IncHostLaunchSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostLaunchSuccess++
}

// IncHostLaunchFailure increments the host-launch-failure counter.
func (c *Collector) IncHostLaunchFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostLaunchFailure++
}

// IncHostFault increments the host-fault counter.
func (c *Collector) IncHostFault() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostFaults++
}

// IncDecodeError increments the frame-decode-error counter.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decodeErrors++
}

// AddContextValuesPersisted adds to the persisted-variable counter.
func (c *Collector) AddContextValuesPersisted(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contextValuesPersisted += n
}

// IncContextValueDropped increments the serialization-degradation counter.
// Each increment is one variable durably replaced by an empty placeholder.
func (c *Collector) IncContextValueDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contextValuesDropped++
}

// Snapshot returns an immutable view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ExecutionsStarted:      c.executionsStarted,
		ExecutionsSucceeded:    c.executionsSucceeded,
		ExecutionsFailed:       c.executionsFailed,
		HostLaunchSuccess:      c.hostLaunchSuccess,
		HostLaunchFailure:      c.hostLaunchFailure,
		HostFaults:             c.hostFaults,
		DecodeErrors:           c.decodeErrors,
		ContextValuesPersisted: c.contextValuesPersisted,
		ContextValuesDropped:   c.contextValuesDropped,
		EngineID:               c.engineID,
		Mode:                   c.mode,
		Boundary:               c.boundary,
	}
}
