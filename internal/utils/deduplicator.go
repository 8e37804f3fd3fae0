package utils

import (
	"sync"
	"time"
)

// Deduplicator remembers recently processed request keys and what they produced.
// Shelf photos are often uploaded from flaky store wifi and retried; a retry with
// the same key gets the first result back instead of a second scan.
type Deduplicator struct {
	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[string]dedupEntry
}

type dedupEntry struct {
	value   string
	pending bool
	at      time.Time
}

// ClaimState is the outcome of Claim
type ClaimState int

const (
	// Claimed means the caller owns the key and must Remember or Release it
	Claimed ClaimState = iota
	// InProgress means another request holds the key and has not finished
	InProgress
	// Done means the key already produced a value
	Done
)

// NewDeduplicator creates a deduplicator keeping keys for ttl
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Deduplicator{ttl: ttl, maxSize: 10000, entries: make(map[string]dedupEntry)}
}

// Claim reserves key for the caller. A key seen within the ttl is reported as
// InProgress or Done (with its value) instead. Empty keys are always Claimed.
func (d *Deduplicator) Claim(key string) (string, ClaimState) {
	if key == "" {
		return "", Claimed
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok && time.Since(e.at) < d.ttl {
		if e.pending {
			return "", InProgress
		}
		return e.value, Done
	}

	d.entries[key] = dedupEntry{pending: true, at: time.Now()}
	d.cleanup()
	return "", Claimed
}

// Remember stores the value produced for a claimed key
func (d *Deduplicator) Remember(key, value string) {
	if key == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[key] = dedupEntry{value: value, at: time.Now()}
	d.cleanup()
}

// Release drops a claim whose request failed so the client can retry
func (d *Deduplicator) Release(key string) {
	if key == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok && e.pending {
		delete(d.entries, key)
	}
}

// cleanup drops old entries once the map gets too big; d.mu must be held
func (d *Deduplicator) cleanup() {
	if len(d.entries) <= d.maxSize {
		return
	}
	for k, e := range d.entries {
		if time.Since(e.at) > 2*d.ttl {
			delete(d.entries, k)
		}
	}
}
