// Package backend is the HTTP client for the ACO server: instance loading,
// artifact downloads and run streams.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/stream"
)

// Paths of the non-streaming endpoints.
const (
	PathLoadInstance      = "/load_instance"
	PathGraph             = "/get_graph"
	PathBestRoute         = "/get_best_route"
	PathIterationsBoxplot = "/plot_iterations_boxplot"
	PathFitnessEvolution  = "/plot_fitness_evolution"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBodyBytes     = 4 << 10
	maxArtifactBytes      = 32 << 20
)

// ErrEmptyResponse is returned for a successful response with no body.
var ErrEmptyResponse = errors.New("empty response body")

// ErrArtifactTooLarge is returned for a blob larger than the client accepts.
var ErrArtifactTooLarge = errors.New("artifact too large")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	// Message is the server's {"error": ...} text when present, else the
	// raw body.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

// Blob is a binary payload with its media type.
type Blob struct {
	ContentType string
	Data        []byte
}

// Client talks to one backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	stream *http.Client
}

// New returns a client for baseURL, e.g. "http://127.0.0.1:5000".
// timeout bounds non-streaming requests; streams are bounded only by their
// context.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		stream: &http.Client{},
	}, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Resolve turns a path or artifact reference into an absolute URL.
// Absolute references are returned unchanged.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return c.base.ResolveReference(u).String(), nil
}

// LoadInstance asks the server to load a problem instance and returns its
// confirmation message.
func (c *Client) LoadInstance(ctx context.Context, instance string) (string, error) {
	body, err := json.Marshal(map[string]string{"instance": instance})
	if err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, PathLoadInstance, bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// GetJSON decodes the JSON response of GET path into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// GetBlob downloads ref, a path or absolute URL.
func (c *Client) GetBlob(ctx context.Context, ref string) (Blob, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return Blob{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Blob{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Blob{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.MethodGet, ref); err != nil {
		return Blob{}, err
	}
	if resp.ContentLength > maxArtifactBytes {
		return Blob{}, fmt.Errorf("GET %s: %w: %d bytes", ref, ErrArtifactTooLarge, resp.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return Blob{}, fmt.Errorf("read %s: %w", ref, err)
	}
	if len(data) > maxArtifactBytes {
		return Blob{}, fmt.Errorf("GET %s: %w: over %d bytes", ref, ErrArtifactTooLarge, maxArtifactBytes)
	}
	if len(data) == 0 {
		return Blob{}, fmt.Errorf("GET %s: %w", ref, ErrEmptyResponse)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Blob{ContentType: contentType, Data: data}, nil
}

// Open starts a run stream. It implements stream.Opener.
func (c *Client) Open(ctx context.Context, endpoint stream.Endpoint, query url.Values) (stream.Stream, error) {
	target := c.base.JoinPath(string(endpoint))
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	log.Debug(log.CatStream, "opening stream", "url", target.String())
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.MethodGet, string(endpoint)); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return stream.NewReader(resp.Body, nil), nil
}

var _ stream.Opener = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, method, path); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: %w", method, path, ErrEmptyResponse)
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	msg := strings.TrimSpace(string(raw))

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: msg}
}
