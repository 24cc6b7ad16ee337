package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/antrail/internal/backend"
	"github.com/zjrosen/antrail/internal/cachemanager"
	"github.com/zjrosen/antrail/internal/capability"
	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/pubsub"
	"github.com/zjrosen/antrail/internal/session"
	"github.com/zjrosen/antrail/internal/tracing"
)

// Source is the backend surface the requester reads from.
type Source interface {
	GetJSON(ctx context.Context, path string, out any) error
	GetBlob(ctx context.Context, ref string) (backend.Blob, error)
}

// Gate refuses requests whose capability is still locked.
type Gate interface {
	Require(k capability.Capability) error
}

// Key identifies a cached artifact.
type Key string

func figureKey(k Kind) Key    { return Key("figure:" + string(k)) }
func imageKey(ref string) Key { return Key("image:" + ref) }

// Options configure a Requester. Zero values select defaults.
type Options struct {
	// TTL bounds how long a fetched artifact is reused.
	TTL time.Duration
	// SkipCache fetches every request from the backend.
	SkipCache bool
	Journal   *journal.Journal
	Tracer    trace.Tracer
}

// Requester fetches artifacts once their capability is unlocked. Results
// are cached until the session that produced them is superseded.
type Requester struct {
	src     Source
	gate    Gate
	ttl     time.Duration
	journal *journal.Journal
	tracer  trace.Tracer

	figures  *cachemanager.ReadThroughCache[Key, Figure, Kind]
	images   *cachemanager.ReadThroughCache[Key, Image, string]
	figureVs versions
	imageVs  versions
}

// versions tags cache keys with an invalidation count, so a fetch that
// started before an invalidation stores under a key nobody reads again.
type versions struct {
	mu    sync.Mutex
	epoch uint64
	byKey map[Key]uint64
}

func (v *versions) tag(base Key) Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tagLocked(base)
}

func (v *versions) tagLocked(base Key) Key {
	return Key(fmt.Sprintf("%s@%d.%d", base, v.epoch, v.byKey[base]))
}

// bump moves each base to a new version and returns the keys it replaced.
func (v *versions) bump(bases ...Key) []Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.byKey == nil {
		v.byKey = make(map[Key]uint64)
	}
	old := make([]Key, 0, len(bases))
	for _, b := range bases {
		old = append(old, v.tagLocked(b))
		v.byKey[b]++
	}
	return old
}

func (v *versions) bumpAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.epoch++
}

// NewRequester creates a requester reading from src and gated by gate.
func NewRequester(src Source, gate Gate, opts Options) *Requester {
	if opts.TTL <= 0 {
		opts.TTL = cachemanager.DefaultExpiration
	}
	if opts.Journal == nil {
		opts.Journal = journal.New()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("noop")
	}

	r := &Requester{
		src:     src,
		gate:    gate,
		ttl:     opts.TTL,
		journal: opts.Journal,
		tracer:  opts.Tracer,
	}
	r.figures = cachemanager.NewReadThroughCache[Key, Figure, Kind](
		cachemanager.NewInMemoryCacheManager[Key, Figure]("figures", opts.TTL, cachemanager.DefaultCleanupInterval),
		r.loadFigure,
		opts.SkipCache,
	)
	r.images = cachemanager.NewReadThroughCache[Key, Image, string](
		cachemanager.NewInMemoryCacheManager[Key, Image]("images", opts.TTL, cachemanager.DefaultCleanupInterval),
		r.loadImage,
		opts.SkipCache,
	)
	return r
}

// FetchStructured returns the figure for graph or best-route.
func (r *Requester) FetchStructured(ctx context.Context, kind Kind) (Figure, error) {
	if !kind.Structured() {
		return Figure{}, r.fail(ctx, string(kind), fmt.Errorf("%w: %s is an image", ErrWrongKind, kind))
	}
	if err := r.gate.Require(kind.Capability()); err != nil {
		return Figure{}, err
	}

	ctx, span := r.start(ctx, string(kind))
	defer span.End()

	fig, err := r.figures.Get(ctx, r.figureVs.tag(figureKey(kind)), kind, r.ttl)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Figure{}, r.fail(ctx, string(kind), err)
	}
	return fig, nil
}

// FetchImage returns the plot for iterations-boxplot or fitness-evolution.
func (r *Requester) FetchImage(ctx context.Context, kind Kind) (Image, error) {
	if kind.Structured() || kind.Path() == "" {
		return Image{}, r.fail(ctx, string(kind), fmt.Errorf("%w: %s is not an image", ErrWrongKind, kind))
	}
	if err := r.gate.Require(kind.Capability()); err != nil {
		return Image{}, err
	}
	return r.image(ctx, string(kind), kind.Path())
}

// FetchAggregate returns the image behind a batch's aggregate reference.
func (r *Requester) FetchAggregate(ctx context.Context, ref string) (Image, error) {
	if ref == "" {
		return Image{}, r.fail(ctx, string(KindAggregate), fmt.Errorf("%w: no aggregate reference", ErrEmptyPayload))
	}
	if err := r.gate.Require(capability.ViewStatistics); err != nil {
		return Image{}, err
	}
	return r.image(ctx, ref, ref)
}

func (r *Requester) image(ctx context.Context, target, ref string) (Image, error) {
	ctx, span := r.start(ctx, target)
	defer span.End()

	img, err := r.images.Get(ctx, r.imageVs.tag(imageKey(ref)), ref, r.ttl)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Image{}, r.fail(ctx, target, err)
	}
	return img, nil
}

func (r *Requester) loadFigure(ctx context.Context, kind Kind) (Figure, error) {
	var fig Figure
	if err := r.src.GetJSON(ctx, kind.Path(), &fig); err != nil {
		return Figure{}, err
	}
	if err := fig.validate(); err != nil {
		return Figure{}, err
	}
	return fig, nil
}

func (r *Requester) loadImage(ctx context.Context, ref string) (Image, error) {
	blob, err := r.src.GetBlob(ctx, ref)
	if err != nil {
		return Image{}, err
	}
	return imageFromBlob(blob)
}

func (r *Requester) start(ctx context.Context, target string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, tracing.SpanArtifactFetch,
		trace.WithAttributes(attribute.String(tracing.AttrArtifact, target)))
}

func (r *Requester) fail(ctx context.Context, target string, err error) error {
	fe := &FetchError{Target: target, Err: err}
	if errors.Is(err, context.Canceled) {
		log.Debug(log.CatArtifact, "fetch cancelled", "artifact", target)
		return fe
	}
	log.Warn(log.CatArtifact, "fetch failed", "artifact", target, "error", err)

	var se *backend.StatusError
	if errors.As(err, &se) && se.Message != "" {
		r.journal.Failf("Could not load %s: %s", target, se.Message)
	} else {
		r.journal.Failf("Could not load %s: %v", target, err)
	}
	return fe
}

// Invalidate drops cached artifacts of the given kinds.
func (r *Requester) Invalidate(ctx context.Context, kinds ...Kind) {
	var figs, imgs []Key
	for _, k := range kinds {
		if k.Structured() {
			figs = append(figs, figureKey(k))
		} else if p := k.Path(); p != "" {
			imgs = append(imgs, imageKey(p))
		}
	}
	if err := r.figures.Invalidate(ctx, r.figureVs.bump(figs...)...); err != nil {
		log.Warn(log.CatArtifact, "invalidate figures", "error", err)
	}
	if err := r.images.Invalidate(ctx, r.imageVs.bump(imgs...)...); err != nil {
		log.Warn(log.CatArtifact, "invalidate images", "error", err)
	}
}

// InvalidateRef drops a cached aggregate image.
func (r *Requester) InvalidateRef(ctx context.Context, ref string) {
	if err := r.images.Invalidate(ctx, r.imageVs.bump(imageKey(ref))...); err != nil {
		log.Warn(log.CatArtifact, "invalidate aggregate", "ref", ref, "error", err)
	}
}

// InstanceLoaded drops everything; a new instance changes every artifact.
func (r *Requester) InstanceLoaded(ctx context.Context) {
	r.Invalidate(ctx, Kinds...)
}

// Observe drops the artifacts a newly completed session replaces. Call it
// synchronously from the session transition (session.Deps.Observers) so no
// request made after the completion is answered from the old cache.
func (r *Requester) Observe(ctx context.Context, change session.StateChange) {
	if change.To != session.Completed {
		return
	}
	switch change.Kind {
	case session.KindRun:
		r.Invalidate(ctx, KindBestRoute, KindIterationsBoxplot, KindFitnessEvolution)
	case session.KindBatch:
		// Batches reuse their aggregate reference.
		r.flushImages(ctx)
	}
}

func (r *Requester) flushImages(ctx context.Context) {
	r.imageVs.bumpAll()
	if err := r.images.Flush(ctx); err != nil {
		log.Warn(log.CatArtifact, "flush images", "error", err)
	}
}

// Watch applies Observe to every transition on sub until ctx is done. The
// returned channel closes when the watcher stops.
func (r *Requester) Watch(ctx context.Context, sub pubsub.Subscriber[session.StateChange]) <-chan struct{} {
	ch := sub.SubscribeReliable(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				r.Observe(ctx, ev.Payload)
			}
		}
	}()
	return done
}
