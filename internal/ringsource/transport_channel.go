package ringsource

import (
	"time"

	"daqevb.dev/evbcore/internal/wire"
)

// ChannelTransport is an in-process Transport backed by a buffered
// channel. Tests and the demo binary use it to feed a synthetic or
// recorded item stream into an Adapter without a real ring buffer.
type ChannelTransport struct {
	items  chan wire.RawItem
	closed chan struct{}
}

// NewChannelTransport returns a ChannelTransport whose internal queue
// holds up to capacity items before Push blocks.
func NewChannelTransport(capacity int) *ChannelTransport {
	return &ChannelTransport{
		items:  make(chan wire.RawItem, capacity),
		closed: make(chan struct{}),
	}
}

// Push enqueues item for a later Read. It reports false if the
// transport has been closed.
func (c *ChannelTransport) Push(item wire.RawItem) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.items <- item:
		return true
	case <-c.closed:
		return false
	}
}

// DataReady polls the queued length until an item is buffered, the
// timeout elapses, or the transport is closed. It consumes nothing and
// leaves the queue order untouched.
func (c *ChannelTransport) DataReady(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for len(c.items) == 0 {
		select {
		case <-deadline:
			return false
		case <-c.closed:
			return false
		case <-time.After(time.Millisecond):
		}
	}
	return true
}

// Read drains up to max items currently queued, without blocking
// beyond the items already buffered.
func (c *ChannelTransport) Read(max int) ([]wire.RawItem, error) {
	var out []wire.RawItem
	for len(out) < max {
		select {
		case item, ok := <-c.items:
			if !ok {
				return out, nil
			}
			out = append(out, item)
		default:
			return out, nil
		}
	}
	return out, nil
}

func (c *ChannelTransport) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
