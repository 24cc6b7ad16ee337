// Package journal is the append-only activity log shown to the user.
//
// Every user-relevant outcome (validation rejections, progress reports,
// stream failures, artifact fetch errors) is appended here. Entries are never
// edited or removed.
package journal

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/pubsub"
)

// Severity marks whether an entry reports a failure.
type Severity int

const (
	Info Severity = iota
	Failure
)

func (s Severity) String() string {
	if s == Failure {
		return "failure"
	}
	return "info"
}

// Entry is one journal line.
type Entry struct {
	Seq      int
	At       time.Time
	Severity Severity
	Text     string
}

// Journal is safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	broker  *pubsub.Broker[Entry]
	now     func() time.Time
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{
		broker: pubsub.NewBroker[Entry](),
		now:    time.Now,
	}
}

// Printf appends an informational entry.
func (j *Journal) Printf(format string, args ...any) Entry {
	return j.append(Info, fmt.Sprintf(format, args...))
}

// Failf appends a failure entry.
func (j *Journal) Failf(format string, args ...any) Entry {
	return j.append(Failure, fmt.Sprintf(format, args...))
}

func (j *Journal) append(sev Severity, text string) Entry {
	j.mu.Lock()
	e := Entry{
		Seq:      len(j.entries) + 1,
		At:       j.now(),
		Severity: sev,
		Text:     text,
	}
	j.entries = append(j.entries, e)
	j.mu.Unlock()

	if sev == Failure {
		log.Warn(log.CatSession, "journal", "text", text)
	} else {
		log.Debug(log.CatSession, "journal", "text", text)
	}
	j.broker.Publish(pubsub.CreatedEvent, e)
	return e
}

// Entries returns a copy of all entries in append order.
func (j *Journal) Entries() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Since returns entries with Seq greater than seq.
func (j *Journal) Since(seq int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(j.entries) {
		return nil
	}
	out := make([]Entry, len(j.entries)-seq)
	copy(out, j.entries[seq:])
	return out
}

// Len returns the number of entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Texts returns just the entry texts, mostly useful in tests.
func (j *Journal) Texts() []string {
	entries := j.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// Broker exposes the append notifications.
func (j *Journal) Broker() *pubsub.Broker[Entry] {
	return j.broker
}

// Follow writes every entry to w, backlog first, until ctx ends. Broker
// notifications only wake the follower; the journal itself is the source of
// truth, so concurrent appends are never reordered or skipped.
func (j *Journal) Follow(ctx context.Context, w io.Writer) <-chan struct{} {
	ch := j.broker.SubscribeReliable(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		last := 0
		flush := func() {
			for _, e := range j.Since(last) {
				writeEntry(w, e)
				last = e.Seq
			}
		}
		flush()
		for {
			select {
			case <-ctx.Done():
				flush()
				return
			case _, ok := <-ch:
				if !ok {
					flush()
					return
				}
				flush()
			}
		}
	}()
	return done
}

func writeEntry(w io.Writer, e Entry) {
	prefix := ""
	if e.Severity == Failure {
		prefix = "! "
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", prefix, e.Text)
}
