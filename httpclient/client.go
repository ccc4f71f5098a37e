package httpclient

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/glowbook/observability"
	"github.com/kbukum/glowbook/resilience"
)

// Request describes an outbound HTTP request.
type Request struct {
	Method string
	// Path is appended to BaseURL unless it is an absolute URL.
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body accepts io.Reader, []byte, string or any JSON-encodable value.
	Body any
	// Auth overrides the client-level auth for this request.
	Auth *AuthConfig
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client sends requests to one hosted backend.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *resilience.Breaker
	tracer  trace.Tracer
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	c := &Client{http: hc, cfg: cfg, tracer: tp.Tracer(observability.InstrumentationName)}
	if cfg.Breaker != nil {
		c.breaker = resilience.NewBreaker(*cfg.Breaker)
	}
	return c, nil
}

// Name returns the backend name.
func (c *Client) Name() string { return c.cfg.Name }

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Available reports whether the circuit breaker currently lets requests through.
func (c *Client) Available() bool {
	return c.breaker == nil || !c.breaker.Open()
}

// BreakerState returns the breaker state, or closed when no breaker is configured.
func (c *Client) BreakerState() resilience.State {
	if c.breaker == nil {
		return resilience.StateClosed
	}
	return c.breaker.State()
}

// Do executes req, retrying and breaking according to the config. Only
// idempotent methods are retried; a reader body is buffered first so every
// attempt sends it whole. Non-2xx responses are returned together with a
// classified *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.cfg.Retry == nil || !idempotent(req.Method) {
		return c.guarded(ctx, req)
	}
	if r, ok := req.Body.(io.Reader); ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, transportError(KindRejected, fmt.Errorf("read body: %w", err))
		}
		req.Body = data
	}
	return resilience.Retry(ctx, *c.cfg.Retry, func(ctx context.Context) (*Response, error) {
		return c.guarded(ctx, req)
	})
}

func idempotent(method string) bool {
	switch strings.ToUpper(method) {
	case "", http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// JSON executes req and decodes a successful body into out (which may be nil).
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) guarded(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.send(ctx, req)
	}
	var resp *Response
	err := c.breaker.Execute(func() error {
		var sendErr error
		resp, sendErr = c.send(ctx, req)
		return sendErr
	})
	if err == resilience.ErrCircuitOpen {
		return nil, &Error{Kind: KindUnavailable, Message: c.cfg.Name + " circuit open", Err: err}
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, span := c.tracer.Start(ctx, "backend "+req.Method, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			observability.AttrBackend.String(c.cfg.Name),
			attribute.String("http.method", req.Method),
			attribute.String("http.route", req.Path),
		))
	start := time.Now()
	defer func() {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.cfg.Metrics.BackendRequest(ctx, c.cfg.Name, status, time.Since(start))
	}()

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(KindTimeout, err)
		}
		return nil, transportError(KindConnection, err)
	}
	defer func() { _ = raw.Body.Close() }()

	body, err := io.ReadAll(raw.Body)
	if err != nil {
		return nil, transportError(KindConnection, fmt.Errorf("read response body: %w", err))
	}
	resp = &Response{StatusCode: raw.StatusCode, Headers: raw.Header, Body: body}
	if statusErr := statusError(raw.StatusCode, body); statusErr != nil {
		return resp, statusErr
	}
	return resp, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, transportError(KindRejected, fmt.Errorf("encode body: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, transportError(KindRejected, fmt.Errorf("create request: %w", err))
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	auth := c.cfg.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	if err := auth.apply(ctx, httpReq); err != nil {
		return nil, &Error{Kind: KindAuth, Message: err.Error(), Err: err}
	}
	return httpReq, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
