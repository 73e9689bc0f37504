package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/metrics"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

const maxBody = 4 << 20

// TokenSource supplies the bearer token; "" means anonymous.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Options configure an HTTPClient.
type Options struct {
	BaseURL       string
	RatePerSecond float64 // 0 disables client-side limiting
	Burst         int
	Timeout       time.Duration // 0 means none
	Tokens        TokenSource
	HTTPClient    *http.Client
}

// HTTPClient talks to the remote API over JSON/HTTP.
type HTTPClient struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
	tokens  TokenSource
	tracer  trace.Tracer
	log     *zap.Logger
}

var _ Gateway = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &HTTPClient{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		client:  hc,
		limiter: limiter,
		tokens:  opts.Tokens,
		tracer:  otel.Tracer("github.com/d60-Lab/sagesync/internal/gateway"),
		log:     logger.Named("gateway"),
	}
}

// envelope is the wire format of every response.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *HTTPClient) List(ctx context.Context, resource string, filters Filters, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	for k, v := range filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	q.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		q.Set("per_page", strconv.Itoa(pageSize))
	}
	raw, err := c.do(ctx, http.MethodGet, resource, "", q, nil)
	if err != nil {
		return nil, err
	}
	p, err := Decode[Page](raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, resource, id, nil, nil)
}

func (c *HTTPClient) Create(ctx context.Context, resource string, payload any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, resource, "", nil, payload)
}

func (c *HTTPClient) Update(ctx context.Context, resource, id string, payload any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, resource, id, nil, payload)
}

func (c *HTTPClient) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, resource, id, nil, nil)
	return err
}

func (c *HTTPClient) path(resource, id string) string {
	p := c.base + "/api/" + strings.Trim(resource, "/")
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func (c *HTTPClient) do(ctx context.Context, method, resource, id string, query url.Values, payload any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, method+" "+resource,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("sagesync.resource", resource),
		))
	defer span.End()

	raw, status, err := c.roundTrip(ctx, method, resource, id, query, payload)
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.UserMessage(err, ""))
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("resource", resource),
			zap.Int("status", status),
			zap.Error(err))
		return nil, err
	}
	c.log.Debug("request ok", zap.String("method", method), zap.String("resource", resource), zap.Int("status", status))
	return raw, nil
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, resource, id string, query url.Values, payload any) (json.RawMessage, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, apperr.NewTransportError(0, "", err)
		}
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, apperr.NewTransportError(0, "cannot encode request", err)
		}
		body = bytes.NewReader(b)
	}

	u := c.path(resource, id)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, apperr.NewTransportError(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(method, 0, time.Since(start))
		return nil, 0, apperr.NewTransportError(0, "", err)
	}
	defer resp.Body.Close()
	metrics.RecordGatewayRequest(method, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, apperr.NewTransportError(resp.StatusCode, "", err)
	}
	raw, err := unwrap(resp, data)
	return raw, resp.StatusCode, err
}

// unwrap turns a response into its data payload or a TransportError.
func unwrap(resp *http.Response, data []byte) (json.RawMessage, error) {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	if mediaType != "application/json" {
		if ok {
			if len(bytes.TrimSpace(data)) == 0 {
				return nil, nil
			}
			return nil, apperr.NewTransportError(resp.StatusCode, "unexpected response", nil)
		}
		return nil, apperr.NewTransportError(resp.StatusCode, strings.TrimSpace(string(data)), nil)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if ok {
			return nil, apperr.NewTransportError(resp.StatusCode, "malformed response", err)
		}
		return nil, apperr.NewTransportError(resp.StatusCode, "", nil)
	}
	if !ok || (env.Success != nil && !*env.Success) {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return nil, apperr.NewTransportError(resp.StatusCode, msg, errors.New(http.StatusText(resp.StatusCode)))
	}
	return env.Data, nil
}
