// Package instance loads a problem instance on the backend and tells the
// rest of the client about it.
package instance

import (
	"context"
	"errors"
	"strings"

	"github.com/zjrosen/antrail/internal/backend"
	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/log"
)

// ErrNoInstance is returned for a blank instance name.
var ErrNoInstance = errors.New("instance name is required")

// Client is the backend call that loads an instance.
type Client interface {
	LoadInstance(ctx context.Context, instance string) (string, error)
}

// Listener is told about every successful load.
type Listener interface {
	InstanceLoaded(ctx context.Context)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context)

// InstanceLoaded calls f.
func (f ListenerFunc) InstanceLoaded(ctx context.Context) { f(ctx) }

// Loader loads instances and journals the outcome.
type Loader struct {
	client    Client
	journal   *journal.Journal
	listeners []Listener
}

// NewLoader creates a loader. j may be nil.
func NewLoader(client Client, j *journal.Journal, listeners ...Listener) *Loader {
	if j == nil {
		j = journal.New()
	}
	return &Loader{client: client, journal: j, listeners: listeners}
}

// Load asks the backend to load name. On success the server's message is
// journaled and every listener is notified; on failure the server's error
// text is journaled and nothing unlocks.
func (l *Loader) Load(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		l.journal.Failf("Failed to load instance: %v", ErrNoInstance)
		return "", ErrNoInstance
	}

	msg, err := l.client.LoadInstance(ctx, name)
	if err != nil {
		log.Warn(log.CatSession, "instance load failed", "instance", name, "error", err)
		var se *backend.StatusError
		if errors.As(err, &se) && se.Message != "" {
			l.journal.Failf("%s", se.Message)
		} else {
			l.journal.Failf("Failed to load instance %s: %v", name, err)
		}
		return "", err
	}

	log.Info(log.CatSession, "instance loaded", "instance", name)
	l.journal.Printf("%s", msg)
	for _, ln := range l.listeners {
		ln.InstanceLoaded(ctx)
	}
	return msg, nil
}
