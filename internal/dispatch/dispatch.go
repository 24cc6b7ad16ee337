// Package dispatch drains a stream in arrival order, classifies every
// payload and hands the resulting events to the session that owns the
// stream.
package dispatch

import (
	"context"

	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/stream"
)

// Sink receives classified events. Apply reports true once the sink has
// reached a terminal state and wants no further events.
type Sink interface {
	Apply(ev events.Event) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev events.Event) bool

// Apply calls f.
func (f SinkFunc) Apply(ev events.Event) bool { return f(ev) }

// Stats summarizes one dispatch loop.
type Stats struct {
	Delivered int
	Malformed int
	// Terminal is the event that ended the loop.
	Terminal events.Event
}

// Run delivers events from s to sink until sink reports a terminal state.
// A closed channel, a message carrying an error, or ctx cancellation are all
// delivered as a transport error, so the loop always ends with the sink
// having seen a terminal event.
func Run(ctx context.Context, s stream.Stream, sink Sink) Stats {
	var stats Stats
	msgs := s.Messages()

	for {
		var ev events.Event

		select {
		case <-ctx.Done():
			ev = events.NewTransportError(ctx.Err())
		case msg, ok := <-msgs:
			switch {
			case !ok:
				ev = events.NewTransportError(stream.ErrEnded)
			case msg.Err != nil:
				ev = events.NewTransportError(msg.Err)
			default:
				ev = events.Classify(msg.Data)
			}
		}

		stats.Delivered++
		if ev.Kind == events.KindMalformed {
			stats.Malformed++
			log.Warn(log.CatDispatch, "malformed event", "reason", ev.Reason, "raw", ev.Raw)
		} else {
			log.Debug(log.CatDispatch, "event", "kind", ev.Kind, "detail", ev.String())
		}

		done := sink.Apply(ev)
		if done || ev.Kind == events.KindTransportError {
			stats.Terminal = ev
			return stats
		}
	}
}
