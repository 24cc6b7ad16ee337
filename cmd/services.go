package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/antrail/internal/artifact"
	"github.com/zjrosen/antrail/internal/backend"
	"github.com/zjrosen/antrail/internal/capability"
	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/instance"
	"github.com/zjrosen/antrail/internal/journal"
	"github.com/zjrosen/antrail/internal/session"
	"github.com/zjrosen/antrail/internal/tracing"
)

// services is the client core shared by the TUI and the headless command.
type services struct {
	client     *backend.Client
	journal    *journal.Journal
	manager    *session.Manager
	controller *capability.Controller
	requester  *artifact.Requester
	canvas     *artifact.Canvas
	loader     *instance.Loader
	tracer     *tracing.Provider
}

func newServices(cfg config.Config) (*services, error) {
	client, err := backend.New(cfg.Server.URL, cfg.Server.Timeout)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	tracer, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("creating tracer: %w", err)
	}

	j := journal.New()
	ctl := capability.NewController()
	req := artifact.NewRequester(client, ctl, artifact.Options{
		TTL:     cfg.Artifacts.CacheTTL,
		Journal: j,
		Tracer:  tracer.Tracer(),
	})
	// Unlocks and cache invalidation land before a session reports done.
	mgr := session.NewManager(session.Deps{
		Opener:  client,
		Journal: j,
		Tracer:  tracer.Tracer(),
		Observers: []func(session.StateChange){
			ctl.Observe,
			func(ch session.StateChange) { req.Observe(context.Background(), ch) },
		},
	})

	s := &services{
		client:     client,
		journal:    j,
		manager:    mgr,
		controller: ctl,
		requester:  req,
		canvas:     artifact.NewCanvas(),
		tracer:     tracer,
	}
	s.loader = instance.NewLoader(client, j,
		instance.ListenerFunc(func(context.Context) { ctl.InstanceLoaded() }),
		req,
	)
	return s, nil
}

// Close cancels active sessions and flushes traces.
func (s *services) Close(ctx context.Context) error {
	return errors.Join(s.manager.Shutdown(ctx), s.tracer.Shutdown(ctx))
}
