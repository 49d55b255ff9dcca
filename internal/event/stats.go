package event

import "sync/atomic"

// Stats counts transport activity from bus events.
type Stats struct {
	channelsOpened    atomic.Int64
	channelsClosed    atomic.Int64
	messagesQueued    atomic.Int64
	messagesReplayed  atomic.Int64
	messagesDelivered atomic.Int64
	responsesDropped  atomic.Int64
	toolCalls         atomic.Int64
	toolErrors        atomic.Int64

	unsub func()
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	ChannelsOpened    int64 `json:"channelsOpened"`
	ChannelsClosed    int64 `json:"channelsClosed"`
	MessagesQueued    int64 `json:"messagesQueued"`
	MessagesReplayed  int64 `json:"messagesReplayed"`
	MessagesDelivered int64 `json:"messagesDelivered"`
	ResponsesDropped  int64 `json:"responsesDropped"`
	ToolCalls         int64 `json:"toolCalls"`
	ToolErrors        int64 `json:"toolErrors"`
}

// NewStats subscribes a counter set to the bus.
func NewStats(bus *Bus) *Stats {
	s := &Stats{}
	s.unsub = bus.SubscribeAll(s.observe)
	return s
}

func (s *Stats) observe(e Event) {
	switch e.Type {
	case ChannelOpened:
		s.channelsOpened.Add(1)
		if d, ok := e.Data.(ChannelData); ok {
			s.messagesReplayed.Add(int64(d.Replayed))
		}
	case ChannelClosed:
		s.channelsClosed.Add(1)
	case MessageQueued:
		s.messagesQueued.Add(1)
	case MessageDelivered:
		s.messagesDelivered.Add(1)
	case ResponseDropped:
		s.responsesDropped.Add(1)
	case ToolInvoked:
		s.toolCalls.Add(1)
		if d, ok := e.Data.(ToolData); ok && d.IsError {
			s.toolErrors.Add(1)
		}
	}
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ChannelsOpened:    s.channelsOpened.Load(),
		ChannelsClosed:    s.channelsClosed.Load(),
		MessagesQueued:    s.messagesQueued.Load(),
		MessagesReplayed:  s.messagesReplayed.Load(),
		MessagesDelivered: s.messagesDelivered.Load(),
		ResponsesDropped:  s.responsesDropped.Load(),
		ToolCalls:         s.toolCalls.Load(),
		ToolErrors:        s.toolErrors.Load(),
	}
}

// Stop detaches the counters from the bus.
func (s *Stats) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
}
