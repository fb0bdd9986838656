package metrics

import "time"

// Source is implemented by whatever holds the live discovery state for one
// network (internal/discovery.Pipeline). The collector only needs read-only
// snapshots, so it depends on this narrow interface rather than importing
// internal/discovery directly and risking an import cycle.
type Source interface {
	Network() string
	DPRequestCounts() map[string]int
	DORequestCounts() map[string]int
}

// Collector periodically snapshots one or more Sources into the package's
// gauges: a ticker-driven background goroutine with an immediate first
// collection.
type Collector struct {
	sources []Source
	stopCh  chan struct{}
}

// NewCollector creates a collector over the given sources.
func NewCollector(sources ...Source) *Collector {
	return &Collector{
		sources: sources,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
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
	for _, src := range c.sources {
		network := src.Network()
		for status, count := range src.DPRequestCounts() {
			DPRequestsKnown.WithLabelValues(network, status).Set(float64(count))
		}
		for status, count := range src.DORequestCounts() {
			DORequestsKnown.WithLabelValues(network, status).Set(float64(count))
		}
	}
}
