package metrics

import (
	"fmt"
	"time"

	"hatbot/internal/bus"
)

// Observe wires the collector to the orchestrator's event stream.
func Observe(events *bus.EventBus, c *MetricsCollector) {
	dispatches := c.Counter("hatbot_dispatches_total", "User sends accepted for dispatch")
	rejected := c.Counter("hatbot_dispatches_rejected_total", "Sends rejected while another dispatch was in flight")
	entries := c.Counter("hatbot_entries_appended_total", "Conversation entries appended")
	failures := c.Counter("hatbot_agent_failures_total", "External agent call failures")
	inFlight := c.Gauge("hatbot_dispatch_in_flight", "Whether a dispatch is currently running")

	events.On(bus.EventDispatchStarted, func(e bus.Event) {
		dispatches.Inc()
		inFlight.Set(1)
	})
	events.On(bus.EventDispatchDone, func(e bus.Event) {
		inFlight.Set(0)
	})
	events.On(bus.EventDispatchRejected, func(e bus.Event) {
		rejected.Inc()
	})
	events.On(bus.EventEntryAppended, func(e bus.Event) {
		entries.Inc()
	})
	events.On(bus.EventAgentFailed, func(e bus.Event) {
		failures.Inc()
	})
}

// Summary returns a short human-readable digest for status output.
func (c *MetricsCollector) Summary() string {
	return fmt.Sprintf("dispatches=%d entries=%d failures=%d uptime=%s",
		c.Counter("hatbot_dispatches_total", "").Value(),
		c.Counter("hatbot_entries_appended_total", "").Value(),
		c.Counter("hatbot_agent_failures_total", "").Value(),
		c.Uptime().Round(time.Second))
}
