package gateway

import "sync"

type replayEntry struct {
	seq  int64
	data []byte
}

// ReplayBuffer retains the most recent public envelopes so a reconnecting
// client can catch up from its last seen sequence number.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []replayEntry
	limit   int
}

// NewReplayBuffer creates a buffer holding up to limit envelopes.
func NewReplayBuffer(limit int) *ReplayBuffer {
	if limit <= 0 {
		limit = 256
	}
	return &ReplayBuffer{entries: make([]replayEntry, 0, limit), limit: limit}
}

// Push records an envelope. seq must increase across calls.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if len(rb.entries) == rb.limit {
		copy(rb.entries, rb.entries[1:])
		rb.entries = rb.entries[:rb.limit-1]
	}
	rb.entries = append(rb.entries, replayEntry{seq: seq, data: data})
}

// Since returns every envelope with seq > after, oldest first. ok is false
// when the buffer no longer covers the gap and the caller must resync from
// the latest snapshot instead.
func (rb *ReplayBuffer) Since(after int64) (out [][]byte, ok bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if len(rb.entries) == 0 {
		return nil, false
	}
	if rb.entries[0].seq > after+1 {
		return nil, false
	}
	for _, e := range rb.entries {
		if e.seq > after {
			out = append(out, e.data)
		}
	}
	return out, true
}

// Len returns the number of retained envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.entries)
}
