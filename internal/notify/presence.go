package notify

import "sync/atomic"

// Presence is the last reported number of concurrently active sessions.
// Every update overwrites the previous value.
type Presence struct {
	count atomic.Int64
	known atomic.Bool
}

// Set overwrites the counter.
func (p *Presence) Set(n int) {
	p.count.Store(int64(n))
	p.known.Store(true)
}

// Get returns the last value and whether any value was ever received.
func (p *Presence) Get() (int, bool) {
	return int(p.count.Load()), p.known.Load()
}
