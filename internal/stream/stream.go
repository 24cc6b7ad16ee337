// Package stream turns a Server-Sent Events response body into an ordered
// channel of payloads owned by a single session.
package stream

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/sse"
)

// Endpoint is a streaming path on the backend.
type Endpoint string

const (
	EndpointRun       Endpoint = "/run_aco_sse"
	EndpointRunSeeded Endpoint = "/run_aco_with_solution_sse"
	EndpointBatch     Endpoint = "/run_multiple_aco"
)

// ErrEnded is reported when the server closes the stream before the session
// saw a terminal event.
var ErrEnded = errors.New("stream ended before a terminal event")

// Message is one payload, or a transport failure when Err is set.
// A failure is always the last message on the channel.
type Message struct {
	Data []byte
	Err  error
}

// Stream is an open event stream. Close releases it and may be called any
// number of times.
type Stream interface {
	Messages() <-chan Message
	Close() error
}

// Opener opens streams against a backend.
type Opener interface {
	Open(ctx context.Context, endpoint Endpoint, query url.Values) (Stream, error)
}

// Reader decodes SSE frames from a body on its own goroutine.
type Reader struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	msgs   chan Message
	done   chan struct{}
	once   sync.Once
}

// NewReader starts decoding body. cancel, when non-nil, is invoked on Close
// to abort the underlying request.
func NewReader(body io.ReadCloser, cancel context.CancelFunc) *Reader {
	r := &Reader{
		body:   body,
		cancel: cancel,
		msgs:   make(chan Message),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Messages returns the payload channel. It is closed after the last message.
func (r *Reader) Messages() <-chan Message {
	return r.msgs
}

// Close aborts the stream. Only the first call has any effect.
func (r *Reader) Close() error {
	r.once.Do(func() {
		close(r.done)
		if r.cancel != nil {
			r.cancel()
		}
		if err := r.body.Close(); err != nil {
			log.Debug(log.CatStream, "closing body", "error", err)
		}
	})
	return nil
}

func (r *Reader) loop() {
	defer close(r.msgs)

	dec := sse.NewDecoder(r.body)
	for {
		frame, err := dec.Next()
		if err != nil {
			if r.closed() {
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrEnded
			}
			r.send(Message{Err: err})
			return
		}
		if frame.Type != sse.DefaultType {
			log.Debug(log.CatStream, "skipping named event", "type", frame.Type)
			continue
		}
		if !r.send(Message{Data: []byte(frame.Data)}) {
			return
		}
	}
}

func (r *Reader) send(m Message) bool {
	select {
	case r.msgs <- m:
		return true
	case <-r.done:
		return false
	}
}

func (r *Reader) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
