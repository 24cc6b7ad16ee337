package stream

import (
	"context"
	"net/url"
	"sync"
)

// Fake is an in-memory Stream for tests. Payloads are queued with Push and
// delivered in order.
type Fake struct {
	msgs chan Message

	mu       sync.Mutex
	closes   int
	releases int
	ended    bool
}

// NewFake returns a fake stream able to queue up to buffer messages.
func NewFake(buffer int) *Fake {
	return &Fake{msgs: make(chan Message, buffer)}
}

// Messages implements Stream.
func (f *Fake) Messages() <-chan Message {
	return f.msgs
}

// Push queues a raw payload.
func (f *Fake) Push(data string) {
	f.msgs <- Message{Data: []byte(data)}
}

// Fail queues a transport failure.
func (f *Fake) Fail(err error) {
	f.msgs <- Message{Err: err}
}

// End closes the message channel as a server hang-up would.
func (f *Fake) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ended {
		f.ended = true
		close(f.msgs)
	}
}

// Close implements Stream. Repeated calls are counted but release only once.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		f.releases++
	}
	return nil
}

// Closes reports how many times Close was called.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Releases reports how many times the stream was actually released.
func (f *Fake) Releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

// Call records one Open request made against a FakeOpener.
type Call struct {
	Endpoint Endpoint
	Query    url.Values
}

// FakeOpener hands out Fake streams and records every Open.
type FakeOpener struct {
	mu      sync.Mutex
	calls   []Call
	streams []*Fake
	err     error
	buffer  int
	onOpen  func(*Fake)
	opened  chan *Fake
}

// NewFakeOpener returns an opener whose streams buffer up to buffer messages.
func NewFakeOpener(buffer int) *FakeOpener {
	return &FakeOpener{buffer: buffer, opened: make(chan *Fake, 64)}
}

// OnOpen registers fn to script every stream as it is opened, before the
// caller sees it.
func (o *FakeOpener) OnOpen(fn func(*Fake)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onOpen = fn
}

// Opened delivers every stream handed out, in order.
func (o *FakeOpener) Opened() <-chan *Fake {
	return o.opened
}

// FailWith makes subsequent Open calls return err.
func (o *FakeOpener) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Open implements Opener.
func (o *FakeOpener) Open(_ context.Context, endpoint Endpoint, query url.Values) (Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, Call{Endpoint: endpoint, Query: query})
	if o.err != nil {
		return nil, o.err
	}
	f := NewFake(o.buffer)
	o.streams = append(o.streams, f)
	if o.onOpen != nil {
		o.onOpen(f)
	}
	select {
	case o.opened <- f:
	default:
	}
	return f, nil
}

// Calls returns every recorded Open request.
func (o *FakeOpener) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Call, len(o.calls))
	copy(out, o.calls)
	return out
}

// Last returns the most recently opened stream, or nil.
func (o *FakeOpener) Last() *Fake {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.streams) == 0 {
		return nil
	}
	return o.streams[len(o.streams)-1]
}
