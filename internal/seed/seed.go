// Package seed drives a running voxpreview server over HTTP to generate the
// preview sample of every voice profile.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Voice is the subset of a voice profile the seeder needs.
type Voice struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	SampleAudioURL *string `json:"sampleAudioUrl"`
}

// Result is the outcome of seeding one voice.
type Result struct {
	ID       int
	Name     string
	AudioURL string
	Cached   bool
	Err      error
}

// Client talks to the voxpreview HTTP API.
type Client struct {
	baseURL  string
	http     *http.Client
	parallel int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithParallel bounds the number of concurrent sample requests. Values
// below one are treated as one.
func WithParallel(n int) Option {
	return func(cl *Client) { cl.parallel = max(n, 1) }
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     http.DefaultClient,
		parallel: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Voices fetches the voice catalogue.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	var out []Voice
	if err := c.do(ctx, http.MethodGet, "/api/voices", &out); err != nil {
		return nil, fmt.Errorf("seed: list voices: %w", err)
	}
	return out, nil
}

// Seed asks the server to ensure the sample for voice id exists.
func (c *Client) Seed(ctx context.Context, id int) (url string, cached bool, err error) {
	var body struct {
		AudioURL string `json:"audioUrl"`
		Cached   bool   `json:"cached"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/voices/"+strconv.Itoa(id)+"/sample", &body); err != nil {
		return "", false, fmt.Errorf("seed: voice %d: %w", id, err)
	}
	return body.AudioURL, body.Cached, nil
}

// SeedAll seeds every voice of the catalogue and returns one Result per
// voice ordered by id. Per-voice failures are reported in Result.Err; the
// returned error is only set when the catalogue cannot be fetched.
func (c *Client) SeedAll(ctx context.Context) ([]Result, error) {
	voices, err := c.Voices(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(voices))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for _, v := range voices {
		g.Go(func() error {
			r := Result{ID: v.ID, Name: v.Name}
			r.AudioURL, r.Cached, r.Err = c.Seed(gctx, v.ID)
			if r.Err != nil {
				slog.Warn("sample seeding failed", "voice_id", v.ID, "err", r.Err)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(results, func(a, b Result) int { return a.ID - b.ID })
	return results, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
