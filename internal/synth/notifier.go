package synth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/polyvoice/internal/message"
)

// subscriberBuffer is the channel size of each subscriber.
const subscriberBuffer = 16

// Notifier fans engine progress out to subscribers. Its Callback may be
// called from any goroutine. Subscribers that fall behind lose events; the
// engine is never blocked.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[chan message.Event]struct{}
	closed bool
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan message.Event]struct{})}
}

// Subscribe returns a channel of events. The channel is closed when ctx is
// done or the notifier is closed.
func (n *Notifier) Subscribe(ctx context.Context) <-chan message.Event {
	ch := make(chan message.Event, subscriberBuffer)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	context.AfterFunc(ctx, func() { n.unsubscribe(ch) })
	return ch
}

func (n *Notifier) unsubscribe(ch chan message.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[ch]; ok {
		delete(n.subs, ch)
		close(ch)
	}
}

// Callback forwards an engine notification. It matches engine.Callback.
func (n *Notifier) Callback(index int, done bool) {
	e := message.Event{Type: message.EventIndex, Index: index, Time: time.Now()}
	if done {
		e = message.Event{Type: message.EventDone, Time: e.Time}
	}
	n.Publish(e)
}

// Publish sends e to every subscriber that has room for it.
func (n *Notifier) Publish(e message.Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("dropping event for slow subscriber", "type", e.Type, "index", e.Index)
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
