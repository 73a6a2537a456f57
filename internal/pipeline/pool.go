package pipeline

import (
	"github.com/smazurov/framegrab/internal/events"
	"github.com/smazurov/framegrab/internal/frame"
	"github.com/smazurov/framegrab/internal/metrics"
)

// acquireReusable returns a frame with no outside holder, constructing a
// new one when the pool has room. A full pool with every frame still held
// evicts its oldest entry and warns: consumers are keeping frames longer
// than the cache allows, which looks like a leak.
func (p *Pipeline) acquireReusable() *frame.Frame {
	p.poolMu.Lock()

	if i := p.freeIndex(); i >= 0 {
		f := p.pool[i]
		// Move to the back so eviction age tracks acquisition order.
		p.pool = append(append(p.pool[:i], p.pool[i+1:]...), f)
		p.poolMu.Unlock()
		return f
	}

	if len(p.pool) < p.maxCached {
		f := frame.New(p.sink, p.logger)
		p.pool = append(p.pool, f)
		metrics.SetPoolSize(len(p.pool))
		p.poolMu.Unlock()
		return f
	}

	// Evict the oldest held frame; it stays alive for its holders and is
	// recycled by GC once they release it.
	p.pool = append(p.pool[1:], frame.New(p.sink, p.logger))
	f := p.pool[len(p.pool)-1]
	size := len(p.pool)
	p.poolMu.Unlock()

	p.leakEvicts.Add(1)
	p.logger.Warn("Frame pool exhausted, evicting oldest entry; consumers may be leaking frames",
		"pool_size", size)
	p.publishEvent(events.FrameLeakSuspectedEvent{
		PoolSize:  size,
		Timestamp: eventTime(),
	})
	return f
}

// freeIndex returns the index of the first frame with no outside holder,
// or -1. Caller holds poolMu.
func (p *Pipeline) freeIndex() int {
	for i, f := range p.pool {
		if f.Refs() == 0 {
			return i
		}
	}
	return -1
}
