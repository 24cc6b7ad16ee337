// Package events defines the tagged event model carried by run streams and
// classifies raw stream payloads into it.
//
// The wire contract distinguishes payloads purely by which fields are
// present:
//
//	Progress       {iteracao, fitness}
//	Final          {final: true, mensagem, melhor_rota}
//	BatchProgress  {run, iterations}
//	BatchFinal     {final: true, message, boxplot_url}
//
// Anything else, including payloads that match more than one shape, is
// Malformed.
package events

import (
	"fmt"

	"github.com/zjrosen/antrail/internal/route"
)

// Kind tags an Event.
type Kind int

const (
	KindMalformed Kind = iota
	KindProgress
	KindFinal
	KindBatchProgress
	KindBatchFinal
	// KindTransportError is never produced by Classify; the dispatcher
	// creates it when the stream itself fails.
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindFinal:
		return "final"
	case KindBatchProgress:
		return "batch_progress"
	case KindBatchFinal:
		return "batch_final"
	case KindTransportError:
		return "transport_error"
	default:
		return "malformed"
	}
}

// IsTerminal reports whether an event of this kind ends a session.
func (k Kind) IsTerminal() bool {
	return k == KindFinal || k == KindBatchFinal || k == KindTransportError
}

// Progress is one report tick of a single run.
type Progress struct {
	Iteration int
	Fitness   float64
}

// Final ends a single run successfully.
type Final struct {
	Message   string
	BestRoute route.Route
}

// BatchProgress is the cumulative progress of one run inside a batch.
type BatchProgress struct {
	RunIndex            int
	IterationsCompleted int
}

// BatchFinal ends a batch successfully.
type BatchFinal struct {
	Message string
	// AggregateArtifactRef is an opaque URI, possibly relative to the backend.
	AggregateArtifactRef string
}

// Event is a classified stream event. Only the payload field matching Kind
// is meaningful.
type Event struct {
	Kind Kind

	Progress      Progress
	Final         Final
	BatchProgress BatchProgress
	BatchFinal    BatchFinal

	// Reason explains a Malformed classification.
	Reason string
	// Err is set for KindTransportError.
	Err error
	// Raw is the original payload, kept for logging.
	Raw string
}

// NewProgress builds a Progress event.
func NewProgress(iteration int, fitness float64) Event {
	return Event{Kind: KindProgress, Progress: Progress{Iteration: iteration, Fitness: fitness}}
}

// NewFinal builds a Final event.
func NewFinal(message string, best route.Route) Event {
	return Event{Kind: KindFinal, Final: Final{Message: message, BestRoute: best}}
}

// NewBatchProgress builds a BatchProgress event.
func NewBatchProgress(run, iterations int) Event {
	return Event{Kind: KindBatchProgress, BatchProgress: BatchProgress{RunIndex: run, IterationsCompleted: iterations}}
}

// NewBatchFinal builds a BatchFinal event.
func NewBatchFinal(message, ref string) Event {
	return Event{Kind: KindBatchFinal, BatchFinal: BatchFinal{Message: message, AggregateArtifactRef: ref}}
}

// NewMalformed builds a Malformed event.
func NewMalformed(raw, reason string) Event {
	return Event{Kind: KindMalformed, Raw: raw, Reason: reason}
}

// NewTransportError wraps a stream-level failure.
func NewTransportError(err error) Event {
	return Event{Kind: KindTransportError, Err: err}
}

func (e Event) String() string {
	switch e.Kind {
	case KindProgress:
		return fmt.Sprintf("progress iteration=%d fitness=%g", e.Progress.Iteration, e.Progress.Fitness)
	case KindFinal:
		return fmt.Sprintf("final route=%s", e.Final.BestRoute)
	case KindBatchProgress:
		return fmt.Sprintf("batch_progress run=%d iterations=%d", e.BatchProgress.RunIndex, e.BatchProgress.IterationsCompleted)
	case KindBatchFinal:
		return fmt.Sprintf("batch_final ref=%s", e.BatchFinal.AggregateArtifactRef)
	case KindTransportError:
		return fmt.Sprintf("transport_error: %v", e.Err)
	default:
		return fmt.Sprintf("malformed: %s", e.Reason)
	}
}
