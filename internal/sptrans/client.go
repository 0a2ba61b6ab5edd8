package sptrans

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"github.com/five82/olhovivo/internal/logging"
)

// Fetcher defines the Olho Vivo read operations consumed by the UI and the
// poller. It is implemented by *Client and can be faked in tests.
type Fetcher interface {
	SearchLines(ctx context.Context, term string) ([]Line, error)
	SearchStops(ctx context.Context, term string) ([]Stop, error)
	LinesByStop(ctx context.Context, stopCode int) ([]Line, error)
	VehiclePositions(ctx context.Context, lineCode int) ([]Vehicle, error)
	ArrivalPredictions(ctx context.Context, stopCode, lineCode int) ([]ArrivalPrediction, error)
	RoadSpeeds(ctx context.Context) ([]RoadSegment, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

// DefaultBaseURL is the public Olho Vivo API root.
const DefaultBaseURL = "http://api.olhovivo.sptrans.com.br/v2.1"

const (
	defaultUserAgent = "olhovivo/0.1"
	requestTimeout   = 10 * time.Second
	maxBodySize      = 8 << 20
	maxLoggedPayload = 512
)

// Endpoint paths, relative to the versioned base URL.
const (
	PathLogin       = "/Login/Autenticar"
	PathLineSearch  = "/Linha/Buscar"
	PathStopSearch  = "/Parada/Buscar"
	PathLinesByStop = "/Parada/BuscarLinhasPorParada"
	PathVehicles    = "/Posicao/Linha"
	PathPredictions = "/Previsao"
	PathRoadSpeeds  = "/KMZ"
)

// session is the login state of one Client. The credential cookie itself
// lives in the http.Client's jar.
type session struct {
	authenticated atomic.Bool
}

// Client talks to the Olho Vivo HTTP API. It is safe for concurrent use.
// Concurrent first calls may each log in; the flag only ever moves to true
// on success (or back to false on a rejected session when re-authentication
// is enabled).
type Client struct {
	baseURL   *url.URL
	token     string
	http      *http.Client
	userAgent string
	logger    *slog.Logger
	limiter   *rate.Limiter
	reauth    bool
	session   session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. A cookie jar is added when
// hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		copied := *hc
		c.http = &copied
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimit throttles outgoing requests to perSecond (burst 1).
// Zero or negative disables throttling.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithReauthenticate controls whether a 401/403 from a data endpoint clears
// the session so the next call logs in again. Disabled by default: a
// successful login then holds for the lifetime of the Client.
func WithReauthenticate(enabled bool) Option {
	return func(c *Client) {
		c.reauth = enabled
	}
}

// NewClient builds a Client for baseURL (DefaultBaseURL when empty) using
// the static API token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		userAgent: defaultUserAgent,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL.String()
}

// Authenticated reports whether the session has logged in.
func (c *Client) Authenticated() bool {
	return c != nil && c.session.authenticated.Load()
}

// Authenticate exchanges the token for a session. Once it has succeeded it
// returns true without touching the network. Failures are logged and
// reported as false.
func (c *Client) Authenticate(ctx context.Context) bool {
	if c == nil {
		return false
	}
	requestID := uuid.NewString()
	logger := c.logger.With(slog.String("op", "authenticate"), slog.String("request_id", requestID))
	return c.authenticate(ctx, logger, requestID)
}

// SearchLines looks lines up by number or terminal name.
func (c *Client) SearchLines(ctx context.Context, term string) ([]Line, error) {
	query := url.Values{}
	query.Set("termosBusca", term)
	return fetchArray[Line](ctx, c, "search_lines", PathLineSearch, query, true)
}

// SearchStops looks stops up by name or address.
func (c *Client) SearchStops(ctx context.Context, term string) ([]Stop, error) {
	query := url.Values{}
	query.Set("termosBusca", term)
	return fetchArray[Stop](ctx, c, "search_stops", PathStopSearch, query, true)
}

// LinesByStop lists the lines serving a stop.
func (c *Client) LinesByStop(ctx context.Context, stopCode int) ([]Line, error) {
	query := url.Values{}
	query.Set("codigoParada", strconv.Itoa(stopCode))
	return fetchArray[Line](ctx, c, "lines_by_stop", PathLinesByStop, query, true)
}

// VehiclePositions returns the latest position of every vehicle on a line.
// The array sits under the "vs" field; a missing or null field is an empty
// result, not an error.
func (c *Client) VehiclePositions(ctx context.Context, lineCode int) ([]Vehicle, error) {
	const op = "vehicle_positions"
	if c == nil {
		return []Vehicle{}, errNilClient
	}
	query := url.Values{}
	query.Set("codigoLinha", strconv.Itoa(lineCode))
	body, logger, err := c.fetch(ctx, op, PathVehicles, query, true)
	if err != nil {
		return []Vehicle{}, err
	}
	vehicles, err := decodeVehicles(op, body)
	if err != nil {
		logShapeError(logger, err)
		return []Vehicle{}, err
	}
	return vehicles, nil
}

// ArrivalPredictions returns arrival estimates for a line at a stop.
func (c *Client) ArrivalPredictions(ctx context.Context, stopCode, lineCode int) ([]ArrivalPrediction, error) {
	query := url.Values{}
	query.Set("codigoParada", strconv.Itoa(stopCode))
	query.Set("codigoLinha", strconv.Itoa(lineCode))
	return fetchArray[ArrivalPrediction](ctx, c, "arrival_predictions", PathPredictions, query, true)
}

// RoadSpeeds returns average speeds per road segment. The endpoint is
// public and does not require a session.
func (c *Client) RoadSpeeds(ctx context.Context) ([]RoadSegment, error) {
	return fetchArray[RoadSegment](ctx, c, "road_speeds", PathRoadSpeeds, nil, false)
}

func fetchArray[T any](ctx context.Context, c *Client, op, path string, query url.Values, needAuth bool) ([]T, error) {
	if c == nil {
		return []T{}, errNilClient
	}
	body, logger, err := c.fetch(ctx, op, path, query, needAuth)
	if err != nil {
		return []T{}, err
	}
	items, err := decodeArray[T](op, body)
	if err != nil {
		logShapeError(logger, err)
		return []T{}, err
	}
	return items, nil
}

// fetch authenticates when needed and returns the raw body of a GET.
func (c *Client) fetch(ctx context.Context, op, path string, query url.Values, needAuth bool) ([]byte, *slog.Logger, error) {
	requestID := uuid.NewString()
	logger := c.logger.With(slog.String("op", op), slog.String("request_id", requestID))

	if needAuth && !c.authenticate(ctx, logger, requestID) {
		logger.Warn("authentication failed, request skipped")
		return nil, logger, ErrAuthFailed
	}

	body, err := c.do(ctx, logger, op, http.MethodGet, path, query, requestID)
	if err != nil {
		logging.LogError(logger, "request failed", err, slog.Int("status", StatusOf(err)))
		var te *TransportError
		if c.reauth && errors.As(err, &te) && te.Unauthorized() {
			c.session.authenticated.Store(false)
			logger.Info("session rejected, next call will log in again")
		}
		return nil, logger, err
	}
	return body, logger, nil
}

func (c *Client) authenticate(ctx context.Context, logger *slog.Logger, requestID string) bool {
	if c.session.authenticated.Load() {
		return true
	}
	query := url.Values{}
	query.Set("token", c.token)
	body, err := c.do(ctx, logger, "authenticate", http.MethodPost, PathLogin, query, requestID)
	if err != nil {
		logging.LogError(logger, "login failed", err, slog.Int("status", StatusOf(err)))
		return false
	}
	// Only a JSON null is a refusal; an empty body still counts as a login.
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		logger.Warn("login returned a null body")
		return false
	}
	c.session.authenticated.Store(true)
	logger.Info("authenticated")
	return true
}

func (c *Client) do(ctx context.Context, logger *slog.Logger, op, method, path string, query url.Values, requestID string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	reqURL := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer logging.SafeCloseWithLogging(resp.Body, logger, op)

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	logging.LogHTTPRequest(logger, method, path, resp.StatusCode,
		float64(time.Since(start).Microseconds())/1000)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(payload) > 0 {
			logger.Debug("error body", slog.String("payload", truncate(payload)))
		}
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if readErr != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", readErr)}
	}
	return payload, nil
}

func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

func decodeArray[T any](op string, raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ShapeError{Op: op, Payload: truncate(trimmed), Err: errNotArray}
	}
	items := []T{}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &ShapeError{Op: op, Payload: truncate(trimmed), Err: fmt.Errorf("decode: %w", err)}
	}
	return items, nil
}

func decodeVehicles(op string, raw []byte) ([]Vehicle, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ShapeError{Op: op, Payload: truncate(trimmed), Err: errNotObject}
	}
	var envelope struct {
		Vehicles json.RawMessage `json:"vs"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &ShapeError{Op: op, Payload: truncate(trimmed), Err: fmt.Errorf("decode: %w", err)}
	}
	if isNullBody(envelope.Vehicles) {
		return []Vehicle{}, nil
	}
	return decodeArray[Vehicle](op, envelope.Vehicles)
}

func logShapeError(logger *slog.Logger, err error) {
	var shape *ShapeError
	if !errors.As(err, &shape) {
		return
	}
	logging.LogError(logger, "unexpected response shape", err, slog.String("payload", shape.Payload))
}

func isNullBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func truncate(payload []byte) string {
	if len(payload) <= maxLoggedPayload {
		return string(payload)
	}
	return string(payload[:maxLoggedPayload]) + "…"
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
