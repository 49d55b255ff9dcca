package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Stream is the outbound side of a live connection.
type Stream interface {
	// WriteMessage writes one encoded JSON-RPC message and flushes it.
	WriteMessage(data []byte) error
	// WriteHeartbeat writes a keep-alive that carries no message.
	WriteHeartbeat() error
}

// result is what a waiting Deliver call learns about its message.
type result struct {
	outcome Outcome
	err     error
}

// Envelope is one inbound message on its way to the dispatcher.
type Envelope struct {
	Payload json.RawMessage
	Method  string
	ID      any

	received time.Time
	// done is nil once the sender has been answered with a queued
	// acknowledgement. Only touched while the envelope sits in a queue
	// guarded by Transport.mu, or by the worker after it took it out.
	done chan result
}

// NewEnvelope wraps an inbound message.
func NewEnvelope(payload json.RawMessage, method string, id any) *Envelope {
	return &Envelope{
		Payload:  payload,
		Method:   method,
		ID:       id,
		received: time.Now(),
	}
}

func (e *Envelope) finish(outcome Outcome, err error) {
	if e.done != nil {
		e.done <- result{outcome: outcome, err: err}
		e.done = nil
	}
}

// Channel is the single live event stream.
type Channel struct {
	id string

	writeMu sync.Mutex
	stream  Stream

	done      chan struct{}
	closeOnce sync.Once
}

func newChannel(id string, stream Stream) *Channel {
	if id == "" {
		id = ulid.Make().String()
	}
	return &Channel{
		id:     id,
		stream: stream,
		done:   make(chan struct{}),
	}
}

// ID returns the channel's unique identifier.
func (c *Channel) ID() string {
	return c.id
}

// Done is closed once the channel has been closed and its stream released.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether the channel has been closed.
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.stream == nil {
		return ErrChannelClosed
	}
	return c.stream.WriteMessage(data)
}

// Heartbeat writes a keep-alive to the stream.
func (c *Channel) Heartbeat() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.stream == nil {
		return ErrChannelClosed
	}
	return c.stream.WriteHeartbeat()
}

// shutdown stops the channel. Returns false if it was already closed.
// After it returns no further writes reach the stream.
func (c *Channel) shutdown() bool {
	first := false
	c.closeOnce.Do(func() {
		first = true

		c.writeMu.Lock()
		c.stream = nil
		c.writeMu.Unlock()

		close(c.done)
	})
	return first
}
