// Package transport correlates inbound JSON-RPC messages with the single
// live event stream.
//
// At most one Channel is live at a time. Messages delivered while no channel
// is live are held in a pending queue and handed, in arrival order, to the
// next channel that opens. A single worker dispatches messages one at a time
// across all channels, so the dispatcher sees them in the order they were
// accepted. Messages not yet started when a channel closes go back to the
// head of the pending queue.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/event"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
)

// ErrChannelClosed is returned when writing to a channel that has closed.
var ErrChannelClosed = errors.New("transport: channel closed")

// ErrTransportClosed is returned by Open and Deliver after Shutdown.
var ErrTransportClosed = errors.New("transport: closed")

// ErrQueueFull is returned by Deliver when no channel is live and the
// pending queue is at its limit.
var ErrQueueFull = errors.New("transport: pending queue full")

// DefaultMaxPending bounds the pending queue when no limit is configured.
const DefaultMaxPending = 1024

// Handler processes one inbound message. A nil response means there is
// nothing to send back.
type Handler interface {
	Dispatch(ctx context.Context, raw json.RawMessage) (json.RawMessage, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error)

func (f HandlerFunc) Dispatch(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	return f(ctx, raw)
}

// Outcome describes what Deliver did with a message.
type Outcome int

const (
	// Queued means the message waits for the next channel: none was live,
	// or the live one closed before the message was started.
	Queued Outcome = iota
	// Delivered means the worker processed the message.
	Delivered
)

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case Delivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// State is the transport's channel state.
type State string

const (
	StateAbsent State = "absent"
	StateLive   State = "live"
	StateClosed State = "closed"
)

// Status is a point-in-time view of the transport.
type Status struct {
	State   State  `json:"state"`
	Channel string `json:"channel,omitempty"`
	Queued  int    `json:"queued"`
}

// Option configures a Transport.
type Option func(*Transport)

// WithMaxPending bounds the pending queue. Zero or less means
// DefaultMaxPending.
func WithMaxPending(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxPending = n
		}
	}
}

// Transport owns the current channel, the pending queue and the inbox of
// messages accepted for the live channel. All three are only changed while
// holding mu, one critical section per transition.
type Transport struct {
	handler    Handler
	bus        *event.Bus
	maxPending int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	current *Channel
	pending []*Envelope // waiting for a channel, sender already acknowledged
	inbox   []*Envelope // accepted for the live channel, not yet started
	closed  bool
}

// New creates a transport that dispatches messages to handler and starts
// its worker.
func New(handler Handler, bus *event.Bus, opts ...Option) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		handler:    handler,
		bus:        bus,
		maxPending: DefaultMaxPending,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.cond = sync.NewCond(&t.mu)

	t.wg.Add(1)
	go t.run()
	return t
}

// Open makes a new channel live on stream. An empty id is replaced by a
// generated ULID. Any current channel is superseded and closed; messages
// accepted for it but not yet started carry over. Pending messages follow
// them in the order they arrived.
func (t *Transport) Open(id string, stream Stream) (*Channel, error) {
	ch := newChannel(id, stream)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	old := t.current
	replay := t.pending
	t.pending = nil
	t.current = ch
	t.inbox = append(t.inbox, replay...)
	t.cond.Signal()
	t.mu.Unlock()

	if old != nil && old.shutdown() {
		logging.Info().
			Str("channel", old.id).
			Str("supersededBy", ch.id).
			Msg("channel superseded")
		t.bus.Publish(event.Event{Type: event.ChannelSuperseded, Data: event.ChannelData{ChannelID: old.id}})
		t.bus.Publish(event.Event{Type: event.ChannelClosed, Data: event.ChannelData{ChannelID: old.id}})
	}

	logging.Info().
		Str("channel", ch.id).
		Int("replayed", len(replay)).
		Msg("channel opened")
	t.bus.Publish(event.Event{Type: event.ChannelOpened, Data: event.ChannelData{ChannelID: ch.id, Replayed: len(replay)}})
	for _, env := range replay {
		t.bus.Publish(event.Event{
			Type: event.MessageReplayed,
			Data: event.MessageData{ChannelID: ch.id, Method: env.Method, RequestID: env.ID},
		})
	}

	return ch, nil
}

// Deliver hands a message to the live channel and waits until it has been
// processed. With no live channel the message is queued and Deliver returns
// Queued immediately. If the channel closes before the worker starts the
// message, it is moved to the pending queue and Deliver returns Queued.
//
// A response that cannot be written because the channel closed is dropped
// and logged; it is not an error. Errors come from the handler, from ctx,
// or from a full pending queue.
func (t *Transport) Deliver(ctx context.Context, env *Envelope) (Outcome, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Queued, ErrTransportClosed
	}
	if t.current == nil {
		if len(t.pending) >= t.maxPending {
			t.mu.Unlock()
			logging.Warn().
				Str("method", env.Method).
				Int("limit", t.maxPending).
				Msg("pending queue full, message rejected")
			return Queued, ErrQueueFull
		}
		t.pending = append(t.pending, env)
		queued := len(t.pending)
		t.mu.Unlock()

		logging.Debug().
			Str("method", env.Method).
			Interface("id", env.ID).
			Int("queued", queued).
			Msg("no live channel, message queued")
		t.bus.Publish(event.Event{Type: event.MessageQueued, Data: event.MessageData{Method: env.Method, RequestID: env.ID}})
		return Queued, nil
	}
	done := make(chan result, 1)
	env.done = done
	t.inbox = append(t.inbox, env)
	t.cond.Signal()
	t.mu.Unlock()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-ctx.Done():
		return Delivered, ctx.Err()
	}
}

// Close closes ch if it is still open and, if it is the current channel,
// returns the transport to the absent state. Messages accepted for ch but
// not yet started move back to the head of the pending queue. Safe to call
// more than once and concurrently with Deliver.
func (t *Transport) Close(ch *Channel) {
	if ch == nil {
		return
	}

	var requeued []*Envelope
	t.mu.Lock()
	if t.current == ch {
		t.current = nil
		requeued = t.inbox
		t.inbox = nil
		t.pending = append(append([]*Envelope(nil), requeued...), t.pending...)
		for _, env := range requeued {
			env.finish(Queued, nil)
		}
	}
	t.mu.Unlock()

	if ch.shutdown() {
		logging.Info().
			Str("channel", ch.id).
			Int("requeued", len(requeued)).
			Msg("channel closed")
		t.bus.Publish(event.Event{Type: event.ChannelClosed, Data: event.ChannelData{ChannelID: ch.id}})
	}
	for _, env := range requeued {
		t.bus.Publish(event.Event{Type: event.MessageQueued, Data: event.MessageData{Method: env.Method, RequestID: env.ID}})
	}
}

// Current returns the live channel, if any.
func (t *Transport) Current() *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Status reports the channel state and the pending queue length.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{State: StateAbsent, Queued: len(t.pending)}
	switch {
	case t.closed:
		s.State = StateClosed
	case t.current != nil:
		s.State = StateLive
		s.Channel = t.current.id
	}
	return s
}

// Shutdown closes the current channel, discards pending messages and waits
// for the worker to finish or ctx to expire. Callers still waiting in
// Deliver get ErrTransportClosed; an in-flight handler call sees its
// context cancelled.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ch := t.current
	t.current = nil
	dropped := len(t.pending) + len(t.inbox)
	for _, env := range t.inbox {
		env.finish(Delivered, ErrTransportClosed)
	}
	t.pending = nil
	t.inbox = nil
	t.cond.Broadcast()
	t.mu.Unlock()

	if dropped > 0 {
		logging.Warn().Int("count", dropped).Msg("discarding queued messages")
	}
	if ch != nil && ch.shutdown() {
		t.bus.Publish(event.Event{Type: event.ChannelClosed, Data: event.ChannelData{ChannelID: ch.id}})
	}
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the only consumer of the inbox. Each message is dispatched
// against the channel that was live when it was taken; if that channel
// closes mid-dispatch the response is dropped.
func (t *Transport) run() {
	defer t.wg.Done()
	for {
		env, ch, ok := t.next()
		if !ok {
			return
		}
		t.process(ch, env)
	}
}

// next blocks until a channel is live and has a message waiting. It
// returns false once the transport is shut down.
func (t *Transport) next() (*Envelope, *Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.closed && (t.current == nil || len(t.inbox) == 0) {
		t.cond.Wait()
	}
	if t.closed {
		return nil, nil, false
	}
	env := t.inbox[0]
	t.inbox[0] = nil
	t.inbox = t.inbox[1:]
	return env, t.current, true
}

func (t *Transport) process(ch *Channel, env *Envelope) {
	log := logging.With().
		Str("channel", ch.id).
		Str("method", env.Method).
		Interface("id", env.ID).
		Logger()

	resp, err := t.handler.Dispatch(t.ctx, env.Payload)
	if err != nil {
		log.Error().Err(err).Msg("dispatch failed")
		env.finish(Delivered, err)
		return
	}

	if resp != nil {
		if err := ch.send(resp); err != nil {
			log.Warn().Err(err).Msg("response dropped")
			t.bus.Publish(event.Event{
				Type: event.ResponseDropped,
				Data: event.MessageData{ChannelID: ch.id, Method: env.Method, RequestID: env.ID, Error: err.Error()},
			})
			env.finish(Delivered, nil)
			return
		}
	}

	log.Debug().Dur("latency", time.Since(env.received)).Msg("message delivered")
	t.bus.Publish(event.Event{
		Type: event.MessageDelivered,
		Data: event.MessageData{ChannelID: ch.id, Method: env.Method, RequestID: env.ID},
	})
	env.finish(Delivered, nil)
}
