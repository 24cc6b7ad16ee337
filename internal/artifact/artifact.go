// Package artifact fetches the figures and plots a finished session makes
// available, and holds the view currently on screen.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	"github.com/zjrosen/antrail/internal/backend"
	"github.com/zjrosen/antrail/internal/capability"
)

// Kind names a fixed-path artifact.
type Kind string

const (
	KindGraph             Kind = "graph"
	KindBestRoute         Kind = "best-route"
	KindIterationsBoxplot Kind = "iterations-boxplot"
	KindFitnessEvolution  Kind = "fitness-evolution"
)

// Kinds lists every fixed-path artifact.
var Kinds = []Kind{KindGraph, KindBestRoute, KindIterationsBoxplot, KindFitnessEvolution}

// KindAggregate labels views of a batch's aggregate reference.
const KindAggregate Kind = "aggregate"

var (
	// ErrArtifactFetch matches every FetchError.
	ErrArtifactFetch = errors.New("artifact fetch failed")
	// ErrEmptyPayload is returned for a figure without traces or an image
	// without bytes.
	ErrEmptyPayload = errors.New("empty artifact payload")
	// ErrUndecodable is returned for a payload that is not the figure or
	// image it claims to be.
	ErrUndecodable = errors.New("undecodable artifact payload")
	// ErrWrongKind is returned when a kind is fetched through the wrong
	// method, e.g. an image kind through FetchStructured.
	ErrWrongKind = errors.New("wrong artifact kind")
)

// Path returns the backend path serving k.
func (k Kind) Path() string {
	switch k {
	case KindGraph:
		return backend.PathGraph
	case KindBestRoute:
		return backend.PathBestRoute
	case KindIterationsBoxplot:
		return backend.PathIterationsBoxplot
	case KindFitnessEvolution:
		return backend.PathFitnessEvolution
	}
	return ""
}

// Capability returns the capability that gates k.
func (k Kind) Capability() capability.Capability {
	switch k {
	case KindGraph:
		return capability.ViewGraph
	case KindBestRoute:
		return capability.ViewBestRoute
	default:
		return capability.ViewStatistics
	}
}

// Structured reports whether k is a figure rather than an image.
func (k Kind) Structured() bool {
	return k == KindGraph || k == KindBestRoute
}

// ParseKind resolves a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown artifact %q", s)
}

// Figure is a structured plot: an edge trace, a node trace and a layout.
// The traces are kept raw; only their point counts are inspected.
type Figure struct {
	EdgeTrace json.RawMessage `json:"edge_trace"`
	NodeTrace json.RawMessage `json:"node_trace"`
	Layout    json.RawMessage `json:"layout"`
}

// FigureStats summarizes a figure for text display.
type FigureStats struct {
	Title string
	Nodes int
	Edges int
}

type traceXY struct {
	X []*float64 `json:"x"`
}

// Stats counts nodes and line segments. Segments in the edge trace are
// separated by null points.
func (f Figure) Stats() (FigureStats, error) {
	var nodes, edges traceXY
	if err := json.Unmarshal(f.NodeTrace, &nodes); err != nil {
		return FigureStats{}, fmt.Errorf("node trace: %w", err)
	}
	if err := json.Unmarshal(f.EdgeTrace, &edges); err != nil {
		return FigureStats{}, fmt.Errorf("edge trace: %w", err)
	}

	st := FigureStats{Nodes: len(nodes.X)}
	run := 0
	for _, x := range edges.X {
		if x == nil {
			if run > 1 {
				st.Edges += run - 1
			}
			run = 0
			continue
		}
		run++
	}
	if run > 1 {
		st.Edges += run - 1
	}

	var layout struct {
		Title json.RawMessage `json:"title"`
	}
	if len(f.Layout) > 0 && json.Unmarshal(f.Layout, &layout) == nil {
		st.Title = titleText(layout.Title)
	}
	return st, nil
}

func titleText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Text
	}
	return ""
}

func (f Figure) validate() error {
	if isEmptyJSON(f.EdgeTrace) && isEmptyJSON(f.NodeTrace) {
		return ErrEmptyPayload
	}
	if err := validateTrace("edge_trace", f.EdgeTrace); err != nil {
		return err
	}
	return validateTrace("node_trace", f.NodeTrace)
}

// validateTrace accepts an absent trace or an object whose "x" is an array
// of numbers and nulls.
func validateTrace(name string, raw json.RawMessage) error {
	if isEmptyJSON(raw) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: %s is not an object", ErrUndecodable, name)
	}
	x, ok := fields["x"]
	if !ok {
		return fmt.Errorf("%w: %s has no x values", ErrUndecodable, name)
	}
	var xs []*float64
	if err := json.Unmarshal(x, &xs); err != nil {
		return fmt.Errorf("%w: %s x: %v", ErrUndecodable, name, err)
	}
	return nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte("{}"))
}

// Image is a rendered plot.
type Image struct {
	ContentType string
	Data        []byte
}

// Dimensions decodes the image header.
func (i Image) Dimensions() (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(i.Data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Extension returns a file extension for the image's media type.
func (i Image) Extension() string {
	mediaType, _, err := mime.ParseMediaType(i.ContentType)
	if err == nil {
		switch mediaType {
		case "image/png":
			return ".png"
		case "image/jpeg":
			return ".jpg"
		case "image/svg+xml":
			return ".svg"
		case "image/gif":
			return ".gif"
		}
	}
	return ".bin"
}

// imageFromBlob accepts only bodies that decode as a supported raster
// image. The decoded format wins over a missing or mismatched image type.
func imageFromBlob(b backend.Blob) (Image, error) {
	if len(b.Data) == 0 {
		return Image{}, ErrEmptyPayload
	}
	var mediaType string
	if b.ContentType != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(b.ContentType)
		if err != nil || !strings.HasPrefix(mediaType, "image/") {
			return Image{}, fmt.Errorf("%w: content type %q", ErrUndecodable, b.ContentType)
		}
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(b.Data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	contentType := b.ContentType
	if mediaType != "image/"+format {
		contentType = "image/" + format
	}
	return Image{ContentType: contentType, Data: b.Data}, nil
}

// FetchError is a failed artifact request. It matches ErrArtifactFetch.
type FetchError struct {
	// Target is the artifact kind or aggregate reference.
	Target string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Target, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrArtifactFetch
}
