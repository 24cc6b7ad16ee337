package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/antrail/internal/dispatch"
	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/pubsub"
	"github.com/zjrosen/antrail/internal/stream"
	"github.com/zjrosen/antrail/internal/tracing"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	// Opener opens the session stream. Required.
	Opener stream.Opener
	// Journal receives user-visible lines. A private journal is used when nil.
	Journal *journal.Journal
	// Publisher receives StateChange notifications. Optional.
	Publisher pubsub.Publisher[StateChange]
	// Observers run synchronously on every transition, before it is
	// published and before Done is closed. They must not block.
	Observers []func(StateChange)
	// Tracer records one span per session. Optional.
	Tracer trace.Tracer
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Journal == nil {
		d.Journal = journal.New()
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// accumulator is the kind-specific part of a session. Methods are called
// with the session mutex held and return the journal lines to emit once it
// is released.
type accumulator interface {
	startLine() string
	accumulate(ev events.Event) []string
	complete(ev events.Event) []string
	failLine(err error) string
}

// core is the lifecycle shared by RunSession and BatchSession.
type core struct {
	id      ID
	kind    Kind
	variant Variant
	params  params.ParameterSet
	deps    Deps
	acc     accumulator

	mu        sync.Mutex
	state     State
	err       error
	handle    stream.Stream
	cancel    context.CancelFunc
	span      trace.Span
	malformed int
	startedAt time.Time
	endedAt   time.Time
	done      chan struct{}
}

func newCore(kind Kind, variant Variant, ps params.ParameterSet, deps Deps, acc accumulator) *core {
	return &core{
		id:      NewID(),
		kind:    kind,
		variant: variant,
		params:  ps,
		deps:    deps.withDefaults(),
		acc:     acc,
		state:   Idle,
		done:    make(chan struct{}),
	}
}

// ID returns the session ID.
func (c *core) ID() ID { return c.id }

// Kind returns the session kind.
func (c *core) Kind() Kind { return c.kind }

// Variant returns the wire variant.
func (c *core) Variant() Variant { return c.variant }

// Params returns the parameters the session was created with.
func (c *core) Params() params.ParameterSet { return c.params }

// State returns the current lifecycle state.
func (c *core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure cause once the session has Failed.
func (c *core) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the session reaches a terminal state after Start.
func (c *core) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the session ends or ctx is done and returns the failure
// cause, if any.
func (c *core) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start moves the session from Idle to Starting and opens its stream in the
// background. It returns an error only if the session could not leave Idle;
// stream failures after that surface as a transition to Failed.
func (c *core) Start(ctx context.Context) error {
	endpoint := Endpoint(c.kind, c.variant)

	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s session %s is %s", ErrInvalidStart, c.kind, c.id.Short(), state)
	}
	query, err := c.params.Query(c.variant == VariantSeeded)
	if err != nil {
		c.mu.Unlock()
		c.deps.Journal.Failf("Cannot start %s: %v", c.kind, err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	ctx, span := c.deps.Tracer.Start(ctx, tracing.SpanSessionPrefix+string(c.kind),
		trace.WithAttributes(
			attribute.String(tracing.AttrSessionID, c.id.String()),
			attribute.String(tracing.AttrSessionKind, string(c.kind)),
			attribute.String(tracing.AttrSessionVariant, string(c.variant)),
			attribute.String(tracing.AttrEndpoint, string(endpoint)),
			attribute.Int(tracing.AttrNumAnts, c.params.NumAnts),
			attribute.Int(tracing.AttrNumIterations, c.params.NumIterations),
			attribute.Bool(tracing.AttrHasSeed, c.params.HasSeed),
		))
	c.state = Starting
	c.cancel = cancel
	c.span = span
	c.startedAt = c.deps.Now()
	line := c.acc.startLine()
	c.mu.Unlock()

	log.Info(log.CatSession, "starting", "id", c.id.Short(), "kind", c.kind, "endpoint", endpoint)
	c.deps.Journal.Printf("%s", line)
	c.notify(Idle, Starting, nil)

	go c.run(ctx, endpoint, query)
	return nil
}

// Cancel aborts an active session. The dispatcher observes the cancellation
// and fails the session with context.Canceled. It is a no-op otherwise.
func (c *core) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	active := c.state.IsActive()
	c.mu.Unlock()

	if active && cancel != nil {
		log.Info(log.CatSession, "cancel requested", "id", c.id.Short())
		cancel()
	}
}

func (c *core) run(ctx context.Context, endpoint stream.Endpoint, query url.Values) {
	defer close(c.done)

	s, err := c.deps.Opener.Open(ctx, endpoint, query)
	if err != nil {
		c.Apply(events.NewTransportError(fmt.Errorf("open %s: %w", endpoint, err)))
		return
	}
	if !c.opened(s) {
		_ = s.Close()
		return
	}

	stats := dispatch.Run(ctx, s, c)
	log.Debug(log.CatSession, "dispatch finished",
		"id", c.id.Short(), "delivered", stats.Delivered, "malformed", stats.Malformed,
		"terminal", stats.Terminal.Kind)
}

func (c *core) opened(s stream.Stream) bool {
	c.mu.Lock()
	if !c.state.CanTransitionTo(Streaming) {
		c.mu.Unlock()
		return false
	}
	c.handle = s
	c.state = Streaming
	c.mu.Unlock()

	c.span.AddEvent(tracing.EventTransition, trace.WithAttributes(
		attribute.String(tracing.AttrFromState, string(Starting)),
		attribute.String(tracing.AttrToState, string(Streaming)),
	))
	c.notify(Starting, Streaming, nil)
	return true
}

// Apply feeds one classified event through Step and performs the resulting
// action. It implements dispatch.Sink and reports whether the session is
// now terminal.
func (c *core) Apply(ev events.Event) bool {
	var (
		lines    []string
		failure  string
		released stream.Stream
		cancel   context.CancelFunc
	)

	c.mu.Lock()
	tr := Step(c.kind, c.state, ev)
	switch tr.Action {
	case ActionAccumulate:
		lines = c.acc.accumulate(ev)
	case ActionComplete:
		lines = c.acc.complete(ev)
	case ActionFail:
		c.err = ev.Err
		if c.err == nil {
			c.err = errors.New(tr.Reason)
		}
		failure = c.acc.failLine(c.err)
	case ActionDiscard:
		c.malformed++
	}
	if tr.Changed() {
		c.state = tr.To
		if tr.To.IsTerminal() {
			released, c.handle = c.handle, nil
			cancel, c.cancel = c.cancel, nil
			c.endedAt = c.deps.Now()
		}
	}
	err := c.err
	c.mu.Unlock()

	c.trace(tr, ev)

	switch tr.Action {
	case ActionDiscard:
		log.Warn(log.CatSession, "discarded event", "id", c.id.Short(), "reason", tr.Reason)
		c.deps.Journal.Printf("Ignored malformed event: %s", tr.Reason)
	case ActionFail:
		log.ErrorErr(log.CatSession, "session failed", err, "id", c.id.Short(), "from", tr.From)
		c.deps.Journal.Failf("%s", failure)
	}
	for _, line := range lines {
		c.deps.Journal.Printf("%s", line)
	}

	if !tr.Changed() {
		return tr.To.IsTerminal()
	}
	if tr.To.IsTerminal() {
		c.release(released, cancel, tr.To, err)
	}
	c.notify(tr.From, tr.To, err)
	return tr.To.IsTerminal()
}

// release frees the stream and request context. It runs exactly once, on
// the transition into a terminal state.
func (c *core) release(s stream.Stream, cancel context.CancelFunc, to State, err error) {
	if s != nil {
		if cerr := s.Close(); cerr != nil {
			log.Debug(log.CatSession, "closing stream", "id", c.id.Short(), "error", cerr)
		}
	}
	if cancel != nil {
		cancel()
	}
	if to == Failed {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	} else {
		c.span.SetStatus(codes.Ok, "")
	}
	c.span.SetAttributes(attribute.String(tracing.AttrSessionState, string(to)))
	c.span.End()
}

func (c *core) trace(tr Transition, ev events.Event) {
	if c.span == nil {
		return
	}
	switch tr.Action {
	case ActionIgnore:
		return
	case ActionDiscard:
		c.span.AddEvent(tracing.EventDiscarded, trace.WithAttributes(
			attribute.String(tracing.AttrEventKind, ev.Kind.String()),
			attribute.String(tracing.AttrMalformed, tr.Reason),
		))
		return
	}

	attrs := []attribute.KeyValue{attribute.String(tracing.AttrEventKind, ev.Kind.String())}
	switch ev.Kind {
	case events.KindProgress:
		attrs = append(attrs,
			attribute.Int(tracing.AttrIteration, ev.Progress.Iteration),
			attribute.Float64(tracing.AttrFitness, ev.Progress.Fitness))
	case events.KindBatchProgress:
		attrs = append(attrs,
			attribute.Int(tracing.AttrRunIndex, ev.BatchProgress.RunIndex),
			attribute.Int(tracing.AttrIteration, ev.BatchProgress.IterationsCompleted))
	case events.KindFinal:
		attrs = append(attrs, attribute.Int(tracing.AttrRouteLen, ev.Final.BestRoute.Len()))
	case events.KindTransportError:
		attrs = append(attrs, attribute.String(tracing.AttrErrorMsg, tr.Reason))
	}
	c.span.AddEvent(tracing.EventApplied, trace.WithAttributes(attrs...))
}

func (c *core) notify(from, to State, err error) {
	log.Debug(log.CatSession, "transition", "id", c.id.Short(), "kind", c.kind, "from", from, "to", to)
	change := StateChange{
		SessionID: c.id,
		Kind:      c.kind,
		Variant:   c.variant,
		From:      from,
		To:        to,
		Err:       err,
		At:        c.deps.Now(),
	}
	for _, observe := range c.deps.Observers {
		observe(change)
	}
	if c.deps.Publisher != nil {
		c.deps.Publisher.Publish(pubsub.StateChangedEvent, change)
	}
}
