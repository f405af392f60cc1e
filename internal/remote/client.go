package remote

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotFound is returned when a record does not exist on the remote store.
var ErrNotFound = errors.New("remote: record not found")

// Doer executes outbound requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// StatusError reports a failed call together with the HTTP status observed.
// Status 0 means no response was received.
type StatusError struct {
	Op     string
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s: status %d", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode implements the status contract used by common.FailureMessage.
func (e *StatusError) StatusCode() int { return e.Status }

// Client talks to a Firebase-style REST database where every resource is
// addressed as {base}/{resource}.json and records as {base}/{resource}/{id}.json.
type Client struct {
	BaseURL string
	HTTP    Doer
}

// New returns a client rooted at baseURL.
func New(baseURL string, doer Doer) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: doer}
}

type created struct {
	Name string `json:"name"`
}

// List decodes the whole collection into out, typically a map keyed by id.
// An empty collection is answered with null and leaves out untouched.
func (c *Client) List(ctx context.Context, resource string, out any) error {
	_, err := c.call(ctx, "list", http.MethodGet, c.collectionURL(resource), nil, out)
	return err
}

// Create appends a record and returns the id generated by the store.
func (c *Client) Create(ctx context.Context, resource string, body any) (string, error) {
	var res created
	if _, err := c.call(ctx, "create", http.MethodPost, c.collectionURL(resource), body, &res); err != nil {
		return "", err
	}
	if res.Name == "" {
		return "", &StatusError{Op: "create", Status: http.StatusBadGateway, Err: errors.New("missing generated id")}
	}
	return res.Name, nil
}

// Get decodes a single record into out. A null payload yields ErrNotFound.
func (c *Client) Get(ctx context.Context, resource, id string, out any) error {
	found, err := c.call(ctx, "get", http.MethodGet, c.recordURL(resource, id), nil, out)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// Put replaces a record.
func (c *Client) Put(ctx context.Context, resource, id string, body any) error {
	_, err := c.call(ctx, "put", http.MethodPut, c.recordURL(resource, id), body, nil)
	return err
}

// Delete removes a record. Deleting a missing record succeeds.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.call(ctx, "delete", http.MethodDelete, c.recordURL(resource, id), nil, nil)
	return err
}

// Ping fetches the shallow key listing of resource to check the store answers.
func (c *Client) Ping(ctx context.Context, resource string) error {
	_, err := c.call(ctx, "ping", http.MethodGet, c.collectionURL(resource)+"?shallow=true", nil, nil)
	return err
}

func (c *Client) collectionURL(resource string) string {
	return fmt.Sprintf("%s/%s.json", c.BaseURL, url.PathEscape(resource))
}

func (c *Client) recordURL(resource, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", c.BaseURL, url.PathEscape(resource), url.PathEscape(id))
}

func (c *Client) call(ctx context.Context, op, method, target string, body, out any) (bool, error) {
	ctx, span := otel.Tracer("remote.Client").Start(ctx, "Client."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("remote.url", target))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("remote %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return false, fmt.Errorf("remote %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return false, &StatusError{Op: op, Status: 0, Err: err}
		}
		return false, fmt.Errorf("remote %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &StatusError{Op: op, Status: 0, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &StatusError{Op: op, Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(raw)))}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return true, &StatusError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
		}
	}
	return true, nil
}

// HTTPTransportClient returns an instrumented http.Client for remote store calls.
func HTTPTransportClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
