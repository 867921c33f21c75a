// Package remote talks to the sync endpoint of the remote store over HTTP+JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/pilotlog/internal/client/models"
	"github.com/dmitrijs2005/pilotlog/internal/common"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote status %d", e.Code)
	}
	return fmt.Sprintf("remote status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return common.ErrRemoteStatus }

// HTTPClient implements syncer.Remote and the connectivity probe.
type HTTPClient struct {
	base *url.URL
	http *http.Client
}

// NewHTTPClient returns a client for the server at baseURL. A nil hc means
// http.DefaultClient; deadlines come from the caller's context.
func NewHTTPClient(baseURL string, hc *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{base: u, http: hc}, nil
}

// Push sends one outbox entry as POST /api/sync.
func (c *HTTPClient) Push(ctx context.Context, e models.OutboxEntry) (models.PushAck, error) {
	var ack models.PushAck

	body, err := json.Marshal(e)
	if err != nil {
		return ack, fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("api", "sync"), bytes.NewReader(body))
	if err != nil {
		return ack, err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, &ack); err != nil {
		return models.PushAck{}, err
	}
	return ack, nil
}

// Pull fetches GET /api/sync/{collection}?since=N.
func (c *HTTPClient) Pull(ctx context.Context, col models.Collection, since int64) ([]json.RawMessage, error) {
	u := c.endpoint("api", "sync", string(col)) + "?since=" + strconv.FormatInt(since, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var resp models.PullResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Ping checks GET /healthz.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("healthz"), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *HTTPClient) endpoint(parts ...string) string {
	return c.base.JoinPath(parts...).String()
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
