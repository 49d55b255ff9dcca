package event

// EventType represents the type of event.
type EventType string

const (
	ServerStarted EventType = "server.started"
	ServerStopped EventType = "server.stopped"

	ChannelOpened     EventType = "channel.opened"
	ChannelSuperseded EventType = "channel.superseded"
	ChannelClosed     EventType = "channel.closed"

	MessageQueued    EventType = "message.queued"
	MessageReplayed  EventType = "message.replayed"
	MessageDelivered EventType = "message.delivered"
	ResponseDropped  EventType = "response.dropped"

	ToolInvoked EventType = "tool.invoked"
)

// ServerData is the data for server.started and server.stopped events.
type ServerData struct {
	Port int `json:"port"`
}

// ChannelData is the data for channel.* events.
type ChannelData struct {
	ChannelID string `json:"channelID"`
	// Replayed is the number of pending messages handed to a newly opened channel.
	Replayed int `json:"replayed,omitempty"`
}

// MessageData is the data for message.* and response.dropped events.
type MessageData struct {
	ChannelID string `json:"channelID,omitempty"`
	Method    string `json:"method,omitempty"`
	RequestID any    `json:"requestID,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ToolData is the data for tool.invoked events.
type ToolData struct {
	Tool    string `json:"tool"`
	IsError bool   `json:"isError"`
}
