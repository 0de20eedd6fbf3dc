// Package client talks to the radio HTTP API. It backs the headless listener and satisfies
// playback.TrackSource and playback.StatsReporter.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pitaradio/model"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Client is an API client bound to one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the server at baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetTimeout sets the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Genres lists the distinct genres.
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var genres []string
	if err := c.get(ctx, "/api/genres", nil, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

// Tracks lists the tracks of genre, or every track when genre is empty.
func (c *Client) Tracks(ctx context.Context, genre string) ([]model.TrackView, error) {
	q := url.Values{}
	if genre != "" {
		q.Set("genre", genre)
	}
	var tracks []model.TrackView
	if err := c.get(ctx, "/api/tracks", q, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Charts fetches the ranked charts of genre.
func (c *Client) Charts(ctx context.Context, genre string) ([]model.ChartEntry, error) {
	var entries []model.ChartEntry
	if err := c.get(ctx, "/api/charts", url.Values{"genre": {genre}}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Next asks the server for a weighted pick. ok is false when the genre is empty.
func (c *Client) Next(ctx context.Context, genre string) (track model.TrackView, ok bool, err error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/next", url.Values{"genre": {genre}}, nil)
	if err != nil {
		return track, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return track, false, nil
	}
	if err := decode(resp, &track); err != nil {
		return track, false, err
	}
	return track, true, nil
}

// ReportClap records one clap.
func (c *Client) ReportClap(ctx context.Context, trackID int64) error {
	return c.post(ctx, "/api/stats/clap", map[string]int64{"trackId": trackID})
}

// ReportPlay records one play of seconds length.
func (c *Client) ReportPlay(ctx context.Context, trackID int64, seconds int64) error {
	return c.post(ctx, "/api/stats/play", map[string]int64{"trackId": trackID, "seconds": seconds})
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, nil)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decode reads a JSON body into out, or turns an error response into *APIError.
func decode(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
