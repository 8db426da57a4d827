package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnavailable reports that no server answered at the configured address.
var ErrUnavailable = errors.New("vidsnatch server unavailable")

// StatusError is a non-2xx reply. Message carries the server's error text.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// Client calls the VidSnatch HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// EventQuery selects a batch from GET /events.
type EventQuery struct {
	Since  uint64
	Limit  int
	Follow bool
}

// NewClient builds a client for bind, which is either host:port or a URL.
func NewClient(bind string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// No timeout - follow mode blocks waiting for events until caller cancels.
		http: &http.Client{},
	}, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, nil, &out)
	return out, err
}

func (c *Client) Submit(ctx context.Context, req DownloadRequest) (DownloadResponse, error) {
	var out DownloadResponse
	err := c.do(ctx, http.MethodPost, "/download", nil, req, &out)
	return out, err
}

func (c *Client) Progress(ctx context.Context, id string) (ProgressResponse, error) {
	var out ProgressResponse
	err := c.do(ctx, http.MethodGet, "/progress/"+id, nil, nil, &out)
	return out, err
}

func (c *Client) Jobs(ctx context.Context) ([]Download, error) {
	var out JobsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Downloads, nil
}

func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/cancel/"+id, nil, nil, nil)
}

func (c *Client) Retry(ctx context.Context, id string) (int, error) {
	var out RetryResponse
	if err := c.do(ctx, http.MethodPost, "/retry/"+id, nil, nil, &out); err != nil {
		return 0, err
	}
	return out.RetryCount, nil
}

func (c *Client) Delete(ctx context.Context, id string) (DeleteResponse, error) {
	var out DeleteResponse
	err := c.do(ctx, http.MethodPost, "/delete/"+id, nil, nil, &out)
	return out, err
}

func (c *Client) Clear(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/clear/"+id, nil, nil, nil)
}

// Events fetches one batch of job events. With Follow set the call blocks
// until an event arrives or ctx ends.
func (c *Client) Events(ctx context.Context, q EventQuery) (EventsResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	var out EventsResponse
	err := c.do(ctx, http.MethodGet, "/events", values, nil, &out)
	return out, err
}

func (c *Client) CurrentFolder(ctx context.Context) (FolderResponse, error) {
	var out FolderResponse
	err := c.do(ctx, http.MethodGet, "/current-folder", nil, nil, &out)
	return out, err
}

// SelectFolder sets the destination to path, or opens the server-side
// picker when path is empty.
func (c *Client) SelectFolder(ctx context.Context, path string) (SelectFolderResponse, error) {
	var out SelectFolderResponse
	err := c.do(ctx, http.MethodPost, "/select-folder", nil, SelectFolderRequest{Path: path}, &out)
	return out, err
}

func (c *Client) OpenFolder(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/open-folder", nil, nil, nil)
}

func (c *Client) StopServer(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stop-server", nil, nil, nil)
}

func (c *Client) DeletePartial(ctx context.Context, filename string) (string, error) {
	var out DeletePartialResponse
	if err := c.do(ctx, http.MethodPost, "/delete-partial-file/"+filename, nil, nil, &out); err != nil {
		return "", err
	}
	return out.Removed, nil
}

func (c *Client) FindFailed(ctx context.Context, filename string) (FindFailedResponse, error) {
	var out FindFailedResponse
	err := c.do(ctx, http.MethodGet, "/find-failed-download-for-file/"+filename, nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsUnavailable reports whether err means the server could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}

// IsStatus reports whether err is a reply with the given HTTP status.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
