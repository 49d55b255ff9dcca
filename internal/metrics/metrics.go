// Package metrics exposes transport and tool activity as Prometheus metrics.
//
// A Collector reads the event bus through its watermill stream, so it never
// blocks the components that publish.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GaxGuy/agpl-BifrostMCP/internal/event"
	"github.com/GaxGuy/agpl-BifrostMCP/internal/logging"
)

const namespace = "bifrost"

// Snapshot is the transport state sampled on every scrape.
type Snapshot struct {
	Live   bool
	Queued int
}

// Collector owns a private registry so several servers can run in one
// process.
type Collector struct {
	registry *prometheus.Registry

	channels  *prometheus.CounterVec
	messages  *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
}

// New creates a Collector. state, if non-nil, backs the live channel and
// pending queue gauges. Gauges read it at scrape time so they cannot drift
// from the transport when events arrive out of order.
func New(state func() Snapshot) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		channels: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_transitions_total",
			Help:      "Event channel transitions by kind (opened, superseded, closed).",
		}, []string{"transition"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by outcome (queued, replayed, delivered, dropped).",
		}, []string{"outcome"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and result.",
		}, []string{"tool", "result"}),
	}

	if state != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_live",
			Help:      "1 while an event channel is live.",
		}, func() float64 {
			if state().Live {
				return 1
			}
			return 0
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_messages",
			Help:      "Messages waiting for an event channel.",
		}, func() float64 {
			return float64(state().Queued)
		})
	}

	return c
}

// Run consumes bus events until ctx is cancelled or the bus closes.
func (c *Collector) Run(ctx context.Context, bus *event.Bus) error {
	events, err := bus.Stream(ctx)
	if err != nil {
		return err
	}
	for e := range events {
		c.Observe(e)
	}
	logging.Debug().Msg("metrics collector stopped")
	return nil
}

// Observe updates the metrics for one event. Event data may be the typed
// struct or its JSON-decoded map form.
func (c *Collector) Observe(e event.Event) {
	switch e.Type {
	case event.ChannelOpened:
		c.channels.WithLabelValues("opened").Inc()
		if n := intField(e.Data, "replayed"); n > 0 {
			c.messages.WithLabelValues("replayed").Add(float64(n))
		}
	case event.ChannelSuperseded:
		c.channels.WithLabelValues("superseded").Inc()
	case event.ChannelClosed:
		c.channels.WithLabelValues("closed").Inc()
	case event.MessageQueued:
		c.messages.WithLabelValues("queued").Inc()
	case event.MessageDelivered:
		c.messages.WithLabelValues("delivered").Inc()
	case event.ResponseDropped:
		c.messages.WithLabelValues("dropped").Inc()
	case event.ToolInvoked:
		result := "ok"
		if boolField(e.Data, "isError") {
			result = "error"
		}
		c.toolCalls.WithLabelValues(stringField(e.Data, "tool"), result).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func intField(data any, key string) int {
	switch d := data.(type) {
	case event.ChannelData:
		if key == "replayed" {
			return d.Replayed
		}
	case map[string]any:
		if v, ok := d[key].(float64); ok {
			return int(v)
		}
	}
	return 0
}

func boolField(data any, key string) bool {
	switch d := data.(type) {
	case event.ToolData:
		if key == "isError" {
			return d.IsError
		}
	case map[string]any:
		v, _ := d[key].(bool)
		return v
	}
	return false
}

func stringField(data any, key string) string {
	switch d := data.(type) {
	case event.ToolData:
		if key == "tool" {
			return d.Tool
		}
	case map[string]any:
		v, _ := d[key].(string)
		return v
	}
	return ""
}
