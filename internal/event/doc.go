/*
Package event provides the pub/sub event system used to observe the bifrost server.

The transport, dispatcher and lifecycle manager publish events; nothing in the
request path depends on a subscriber being present.

# Architecture

A Bus keeps direct subscribers (called with the typed Event) and mirrors every
event as JSON onto a watermill gochannel topic. Stream returns a channel fed
from that topic, which lets consumers such as the Prometheus exporter run in
their own goroutine.

# Event Types

Server Events:
  - server.started: Listener bound (ServerData)
  - server.stopped: Listener released (ServerData)

Channel Events:
  - channel.opened: A stream became the live channel (ChannelData, with replay count)
  - channel.superseded: A live channel was replaced by a newer one
  - channel.closed: A channel was released

Message Events:
  - message.queued: A POST arrived with no live channel, or a closing channel handed an unstarted message back
  - message.replayed: A queued message was handed to a new channel
  - message.delivered: A response was written to the stream
  - response.dropped: A response could not be written

Tool Events:
  - tool.invoked: A tools/call completed (ToolData)

# Usage

	bus := event.NewBus()
	defer bus.Close()

	stats := event.NewStats(bus)
	bus.PublishSync(event.Event{Type: event.ChannelOpened, Data: event.ChannelData{ChannelID: id}})
	_ = stats.Snapshot().ChannelsOpened // 1

Publish calls each subscriber in its own goroutine; PublishSync calls them in
order before returning.
*/
package event
