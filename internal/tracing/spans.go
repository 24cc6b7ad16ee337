package tracing

// Span attribute keys.
const (
	AttrSessionID      = "session.id"
	AttrSessionKind    = "session.kind"
	AttrSessionVariant = "session.variant"
	AttrSessionState   = "session.state"
	AttrEndpoint       = "stream.endpoint"

	AttrNumAnts       = "aco.num_ants"
	AttrNumIterations = "aco.num_iterations"
	AttrHasSeed       = "aco.has_seed"

	AttrEventKind = "event.kind"
	AttrIteration = "progress.iteration"
	AttrFitness   = "progress.fitness"
	AttrRunIndex  = "batch.run"
	AttrRunCount  = "batch.runs"
	AttrRouteLen  = "route.length"
	AttrArtifact  = "artifact.kind"
	AttrMalformed = "event.reason"
	AttrErrorMsg  = "error.message"
	AttrFromState = "transition.from"
	AttrToState   = "transition.to"
)

// Span names.
const (
	SpanSessionPrefix = "session."
	SpanArtifactFetch = "artifact.fetch"
)

// Span event names.
const (
	EventTransition = "session.transition"
	EventApplied    = "event.applied"
	EventMalformed  = "event.malformed"
	EventDiscarded  = "event.discarded"
)
