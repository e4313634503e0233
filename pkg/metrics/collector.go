package metrics

import (
	"time"
)

// ClusterCounter is the part of the Cluster Registry the collector samples;
// *registry.Registry satisfies it.
type ClusterCounter interface {
	Count() int
}

// Collector periodically samples gauge-like state from the Cluster
// Registry. Counters (dispatch outcomes, step status, cache hits) are
// incremented inline by their owning components; this collector only
// handles metrics that require a point-in-time snapshot.
type Collector struct {
	registry ClusterCounter
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector over the given registry.
func NewCollector(reg ClusterCounter) *Collector {
	return &Collector{
		registry: reg,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic collection.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ClustersRegistered.Set(float64(c.registry.Count()))
}
