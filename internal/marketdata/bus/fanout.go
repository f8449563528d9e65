// Package bus distributes broadcast events to independent consumers.
package bus

import (
	"log"
	"sync"

	"github.com/nestcub/autotrader/internal/model"
)

type subscriber struct {
	name string
	ch   chan model.Event
}

// FanOut copies every published event to each subscriber's buffered channel.
// A full subscriber misses the event rather than blocking the publisher.
type FanOut struct {
	mu      sync.RWMutex
	subs    []subscriber
	bufSize int
	closed  bool

	// OnDrop is called when an event is dropped for the named subscriber.
	OnDrop func(name string, ev model.Event)
}

// New creates a FanOut with the given buffer size for subscriber channels.
func New(bufSize int) *FanOut {
	return &FanOut{bufSize: bufSize}
}

// Subscribe registers a named consumer and returns its channel. The channel
// is closed by Close.
func (f *FanOut) Subscribe(name string) <-chan model.Event {
	ch := make(chan model.Event, f.bufSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, subscriber{name: name, ch: ch})
	return ch
}

// Publish implements model.Publisher. It never blocks.
func (f *FanOut) Publish(ev model.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, s := range f.subs {
		select {
		case s.ch <- ev:
		default:
			if f.OnDrop != nil {
				f.OnDrop(s.name, ev)
			} else {
				log.Printf("[bus] subscriber %s full, dropping %s", s.name, ev.Type)
			}
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (f *FanOut) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, s := range f.subs {
		close(s.ch)
	}
}

// ChannelStat is the fill level of one subscriber channel.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

// ChannelStats returns the fill level of each subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.subs))
	for i, s := range f.subs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
