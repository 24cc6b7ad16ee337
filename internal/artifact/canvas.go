package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/pubsub"
)

// View is one visualization: exactly one of Figure and Image is set.
type View struct {
	Kind   Kind
	Ref    string
	Figure *Figure
	Image  *Image
	At     time.Time
}

// Describe returns a one-line text rendering of the view.
func (v View) Describe() string {
	switch {
	case v.Figure != nil:
		st, err := v.Figure.Stats()
		if err != nil {
			return fmt.Sprintf("%s: unreadable figure (%v)", v.Kind, err)
		}
		if st.Title != "" {
			return fmt.Sprintf("%s: %s, %d nodes, %d edges", v.Kind, st.Title, st.Nodes, st.Edges)
		}
		return fmt.Sprintf("%s: %d nodes, %d edges", v.Kind, st.Nodes, st.Edges)
	case v.Image != nil:
		w, h, err := v.Image.Dimensions()
		if err != nil {
			return fmt.Sprintf("%s: %s, %d bytes", v.Kind, v.Image.ContentType, len(v.Image.Data))
		}
		return fmt.Sprintf("%s: %s %dx%d, %d bytes", v.Kind, v.Image.ContentType, w, h, len(v.Image.Data))
	}
	return string(v.Kind)
}

// Save writes the view into dir and returns the file path. Figures are
// written as JSON, images with the extension of their media type.
func (v View) Save(dir string) (string, error) {
	var (
		data []byte
		ext  string
	)
	switch {
	case v.Figure != nil:
		var err error
		data, err = json.MarshalIndent(v.Figure, "", "  ")
		if err != nil {
			return "", err
		}
		ext = ".json"
	case v.Image != nil:
		data, ext = v.Image.Data, v.Image.Extension()
	default:
		return "", ErrEmptyPayload
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fileName(v)+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func fileName(v View) string {
	if v.Kind != KindAggregate || v.Ref == "" {
		return string(v.Kind)
	}
	base := filepath.Base(v.Ref)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return string(KindAggregate)
	}
	return string(KindAggregate) + "-" + base
}

// Canvas holds the view on screen. A failed load leaves the previous view
// in place.
type Canvas struct {
	mu      sync.RWMutex
	current View
	shown   bool
	broker  *pubsub.Broker[View]
	now     func() time.Time
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{broker: pubsub.NewBroker[View](), now: time.Now}
}

// Broker publishes an UpdatedEvent for every view shown.
func (c *Canvas) Broker() *pubsub.Broker[View] {
	return c.broker
}

// Current returns the view on screen, if any.
func (c *Canvas) Current() (View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.shown
}

// Show replaces the view.
func (c *Canvas) Show(v View) {
	if v.At.IsZero() {
		v.At = c.now()
	}
	c.mu.Lock()
	c.current, c.shown = v, true
	c.mu.Unlock()
	c.broker.Publish(pubsub.UpdatedEvent, v)
}

// Load fetches kind through r and shows it. On failure the canvas is left
// unchanged and the error is returned.
func (c *Canvas) Load(ctx context.Context, r *Requester, kind Kind) (View, error) {
	v := View{Kind: kind}
	if kind.Structured() {
		fig, err := r.FetchStructured(ctx, kind)
		if err != nil {
			return View{}, err
		}
		v.Figure = &fig
	} else {
		img, err := r.FetchImage(ctx, kind)
		if err != nil {
			return View{}, err
		}
		v.Image = &img
	}
	c.Show(v)
	log.Debug(log.CatArtifact, "canvas updated", "artifact", kind)
	return v, nil
}

// LoadAggregate fetches a batch's aggregate reference and shows it.
func (c *Canvas) LoadAggregate(ctx context.Context, r *Requester, ref string) (View, error) {
	img, err := r.FetchAggregate(ctx, ref)
	if err != nil {
		return View{}, err
	}
	v := View{Kind: KindAggregate, Ref: ref, Image: &img}
	c.Show(v)
	log.Debug(log.CatArtifact, "canvas updated", "artifact", KindAggregate, "ref", ref)
	return v, nil
}
