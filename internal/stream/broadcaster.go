package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ac-schroeder/DJApp/internal/logger"
)

// listenerBuffer is about 3 seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out the master output to N monitor listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	dropped   atomic.Int64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16
	done chan struct{}
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	n := len(b.listeners)
	b.mu.Unlock()
	logger.Debug("monitor listener subscribed", logger.Int("listeners", n))
	return l
}

// Unsubscribe removes a listener and closes its done channel. Safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	n := len(b.listeners)
	b.mu.Unlock()
	if !ok {
		return
	}
	close(l.done)
	logger.Debug("monitor listener unsubscribed", logger.Int("listeners", n))
}

func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped counts frames skipped because a listener's buffer was full.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}

// Run reads frames from source and fans out to all listeners until ctx is
// cancelled or source is closed. Slow listeners lose frames rather than
// stalling the output.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
