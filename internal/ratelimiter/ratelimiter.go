/* SPDX-License-Identifier: MIT
 *
 * Token-bucket limiter keyed on the 6-byte broadcast link-layer address,
 * used by the demux to throttle repeated admission of the same peer address.
 */

package ratelimiter

import (
	"sync"
	"time"
)

const (
	eventsPerSecond    = 20
	eventsBurstable    = 5
	garbageCollectTime = time.Second
	eventCost          = 1_000_000_000 / eventsPerSecond
	maxTokens          = eventCost * eventsBurstable
)

// AddrLen matches broadcast.Address's 6-byte link-layer address.
const AddrLen = 6

type entry struct {
	mutex    sync.Mutex
	lastTime time.Time
	tokens   int64
}

// Ratelimiter is a per-address token bucket gating how often one peer
// address may cause the demux to allocate a fresh inbound queue. The demux
// consults Allow only when an address has no queue (first sight, or after
// its queue was closed and pruned); established peers are unaffected. Each
// address has its own bucket and the first Allow for an address always
// succeeds, so a stream of distinct source addresses is not throttled.
type Ratelimiter struct {
	mutex sync.RWMutex
	stop  chan struct{}
	table map[[AddrLen]byte]*entry
}

// Init (re)starts the ratelimiter and its background garbage collector.
func (r *Ratelimiter) Init() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.stop != nil {
		close(r.stop)
	}
	r.stop = make(chan struct{})
	r.table = make(map[[AddrLen]byte]*entry)

	stop := r.stop
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.mutex.Lock()
				for key, e := range r.table {
					e.mutex.Lock()
					stale := time.Since(e.lastTime) > garbageCollectTime
					e.mutex.Unlock()
					if stale {
						delete(r.table, key)
					}
				}
				r.mutex.Unlock()
			}
		}
	}()
}

// Close stops the garbage-collection goroutine.
func (r *Ratelimiter) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

// Allow reports whether addr may proceed, consuming a token if so.
func (r *Ratelimiter) Allow(addr [AddrLen]byte) bool {
	r.mutex.RLock()
	e := r.table[addr]
	r.mutex.RUnlock()

	if e == nil {
		e = &entry{tokens: maxTokens - eventCost, lastTime: time.Now()}
		r.mutex.Lock()
		r.table[addr] = e
		r.mutex.Unlock()
		return true
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	now := time.Now()
	e.tokens += now.Sub(e.lastTime).Nanoseconds()
	e.lastTime = now
	if e.tokens > maxTokens {
		e.tokens = maxTokens
	}
	if e.tokens > eventCost {
		e.tokens -= eventCost
		return true
	}
	return false
}
