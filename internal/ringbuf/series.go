// Package ringbuf provides the fixed-capacity FIFO window of recent prices
// kept per symbol.
package ringbuf

// Series is a bounded window of float64 samples. Once full, each Push evicts
// the oldest sample. Not safe for concurrent use; callers hold their own lock.
type Series struct {
	buf  []float64
	head int // index of the oldest sample
	n    int
}

// New creates an empty series. A capacity below 1 is raised to 1.
func New(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when the window is full.
func (s *Series) Push(v float64) {
	if s.n < len(s.buf) {
		s.buf[(s.head+s.n)%len(s.buf)] = v
		s.n++
		return
	}
	s.buf[s.head] = v
	s.head = (s.head + 1) % len(s.buf)
}

// Values returns a copy of the window, oldest first.
func (s *Series) Values() []float64 {
	out := make([]float64, s.n)
	for i := 0; i < s.n; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Last returns the newest sample, or false when empty.
func (s *Series) Last() (float64, bool) {
	if s.n == 0 {
		return 0, false
	}
	return s.buf[(s.head+s.n-1)%len(s.buf)], true
}

// Len returns the number of retained samples.
func (s *Series) Len() int { return s.n }

// Cap returns the fixed capacity.
func (s *Series) Cap() int { return len(s.buf) }
