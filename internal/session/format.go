package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/antrail/internal/events"
	"github.com/zjrosen/antrail/internal/route"
)

func formatProgress(p events.Progress) string {
	return fmt.Sprintf("Iteration %d: fitness %g", p.Iteration, p.Fitness)
}

func marshalRoute(r route.Route) string {
	text, err := r.MarshalText()
	if err != nil {
		return r.String()
	}
	return string(text)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
