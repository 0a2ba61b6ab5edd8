package sptrans

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/olhovivo/internal/logging"
)

// upstream is a scripted Olho Vivo double. Unset routes answer 404.
type upstream struct {
	login  http.HandlerFunc
	routes map[string]http.HandlerFunc

	mu   sync.Mutex
	hits map[string]int
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	if u.hits == nil {
		u.hits = make(map[string]int)
	}
	u.hits[r.URL.Path]++
	u.mu.Unlock()

	if r.URL.Path == "/v2.1"+PathLogin {
		if u.login != nil {
			u.login(w, r)
			return
		}
		writeBody(w, http.StatusOK, "true")
		return
	}
	for path, h := range u.routes {
		if r.URL.Path == "/v2.1"+path {
			h(w, r)
			return
		}
	}
	http.NotFound(w, r)
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits["/v2.1"+path]
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, http.StatusOK, body)
	}
}

func newTestClient(t *testing.T, up *upstream, opts ...Option) (*Client, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(up)
	t.Cleanup(server.Close)

	var logs bytes.Buffer
	opts = append([]Option{WithLogger(logging.NewStructuredLogger(&logs, slog.LevelDebug))}, opts...)
	c, err := NewClient(server.URL+"/v2.1", "secret", opts...)
	require.NoError(t, err)
	return c, &logs
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, u.String())

	u, err = parseBaseURL("example.com:8080/v2.1/?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "/v2.1", u.Path)
	assert.Empty(t, u.RawQuery)
	assert.Empty(t, u.Fragment)

	_, err = parseBaseURL("ftp://example.com")
	assert.Error(t, err)
}

func TestAuthenticate_MemoizesSuccess(t *testing.T) {
	up := &upstream{}
	c, _ := newTestClient(t, up)
	ctx := testContext(t)

	assert.False(t, c.Authenticated())
	assert.True(t, c.Authenticate(ctx))
	assert.True(t, c.Authenticate(ctx))
	assert.True(t, c.Authenticated())
	assert.Equal(t, 1, up.count(PathLogin), "second Authenticate must not hit the network")
}

func TestAuthenticate_SendsTokenAsQuery(t *testing.T) {
	var gotToken, gotMethod string
	up := &upstream{login: func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		gotMethod = r.Method
		writeBody(w, http.StatusOK, "true")
	}}
	c, _ := newTestClient(t, up)

	require.True(t, c.Authenticate(testContext(t)))
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestAuthenticate_FailuresReturnFalseAndRetryLater(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"Message":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, `{"Message":"denied"}`},
		{"null body", http.StatusOK, "null"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up := &upstream{login: func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, tc.status, tc.body)
			}}
			c, logs := newTestClient(t, up)
			ctx := testContext(t)

			assert.False(t, c.Authenticate(ctx))
			assert.False(t, c.Authenticated())
			assert.False(t, c.Authenticate(ctx))
			assert.Equal(t, 2, up.count(PathLogin), "failed login is not memoized")
			assert.NotEmpty(t, logs.String())
		})
	}
}

func TestAuthenticate_EmptyBodyIsSuccess(t *testing.T) {
	up := &upstream{login: func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}}
	c, _ := newTestClient(t, up)
	ctx := testContext(t)

	require.True(t, c.Authenticate(ctx))
	assert.True(t, c.Authenticated())
	assert.True(t, c.Authenticate(ctx))
	assert.Equal(t, 1, up.count(PathLogin))
}

func TestAuthenticate_NetworkErrorReturnsFalse(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(url, "secret")
	require.NoError(t, err)
	assert.False(t, c.Authenticate(testContext(t)))
}

func TestDataOperations_AuthFailureSkipsRequest(t *testing.T) {
	dataRoutes := map[string]http.HandlerFunc{
		PathLineSearch:  respond(`[]`),
		PathStopSearch:  respond(`[]`),
		PathLinesByStop: respond(`[]`),
		PathVehicles:    respond(`{"vs":[]}`),
		PathPredictions: respond(`[]`),
	}
	up := &upstream{
		login: func(w http.ResponseWriter, _ *http.Request) {
			writeBody(w, http.StatusInternalServerError, "")
		},
		routes: dataRoutes,
	}
	c, _ := newTestClient(t, up)
	ctx := testContext(t)

	lines, err := c.SearchLines(ctx, "8000")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	stops, err := c.SearchStops(ctx, "Paulista")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.NotNil(t, stops)
	assert.Empty(t, stops)

	byStop, err := c.LinesByStop(ctx, 1001)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.NotNil(t, byStop)
	assert.Empty(t, byStop)

	vehicles, err := c.VehiclePositions(ctx, 1273)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.NotNil(t, vehicles)
	assert.Empty(t, vehicles)

	predictions, err := c.ArrivalPredictions(ctx, 1001, 1273)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.NotNil(t, predictions)
	assert.Empty(t, predictions)

	for path := range dataRoutes {
		assert.Zero(t, up.count(path), "no data request after failed login: %s", path)
	}
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestDataOperations_NonArrayBodiesYieldEmpty(t *testing.T) {
	bodies := []string{`{}`, `"not-an-array"`, `null`, `42`, `{"vs":[]}`}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			up := &upstream{routes: map[string]http.HandlerFunc{
				PathLineSearch:  respond(body),
				PathStopSearch:  respond(body),
				PathLinesByStop: respond(body),
				PathPredictions: respond(body),
			}}
			c, logs := newTestClient(t, up)
			ctx := testContext(t)

			lines, err := c.SearchLines(ctx, "x")
			assert.Empty(t, lines)
			assert.NotNil(t, lines)
			assert.Equal(t, KindShape, KindOf(err))

			stops, err := c.SearchStops(ctx, "x")
			assert.Empty(t, stops)
			assert.Equal(t, KindShape, KindOf(err))

			byStop, err := c.LinesByStop(ctx, 1)
			assert.Empty(t, byStop)
			assert.Equal(t, KindShape, KindOf(err))

			predictions, err := c.ArrivalPredictions(ctx, 1, 2)
			assert.Empty(t, predictions)
			assert.Equal(t, KindShape, KindOf(err))

			var shape *ShapeError
			require.True(t, errors.As(err, &shape))
			assert.Equal(t, body, shape.Payload)
			assert.Contains(t, logs.String(), "unexpected response shape")
		})
	}
}

func TestDataOperations_ElementDecodeFailureIsShapeError(t *testing.T) {
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathStopSearch: respond(`[{"cp":"not-a-number"}]`),
	}}
	c, _ := newTestClient(t, up)

	stops, err := c.SearchStops(testContext(t), "x")
	assert.Empty(t, stops)
	assert.Equal(t, KindShape, KindOf(err))
}

func TestVehiclePositions_Envelope(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantLen  int
		wantKind Kind
	}{
		{"vehicles", `{"hr":"14:31","vs":[{"p":11433,"a":false,"ta":"2017-05-12T14:30:37Z","py":-23.54,"px":-46.64},{"p":"11436","a":true,"ta":"2017-05-12T14:30:55Z","py":-23.53,"px":-46.65}]}`, 2, KindOK},
		{"missing vs", `{}`, 0, KindOK},
		{"null vs", `{"vs":null}`, 0, KindOK},
		{"vs not an array", `{"vs":"not-an-array"}`, 0, KindShape},
		{"body is an array", `[]`, 0, KindShape},
		{"body is null", `null`, 0, KindShape},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			up := &upstream{routes: map[string]http.HandlerFunc{PathVehicles: respond(tc.body)}}
			c, _ := newTestClient(t, up)

			vehicles, err := c.VehiclePositions(testContext(t), 1273)
			assert.NotNil(t, vehicles)
			assert.Len(t, vehicles, tc.wantLen)
			assert.Equal(t, tc.wantKind, KindOf(err))
		})
	}
}

func TestVehiclePositions_DecodesFields(t *testing.T) {
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathVehicles: respond(`{"vs":[{"p":11433,"a":true,"ta":"2017-05-12T14:30:37Z","py":-23.54,"px":-46.64}]}`),
	}}
	c, _ := newTestClient(t, up)

	vehicles, err := c.VehiclePositions(testContext(t), 1273)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, Vehicle{Prefix: "11433", Accessible: true, UpdatedAt: "2017-05-12T14:30:37Z", Lat: -23.54, Lon: -46.64}, vehicles[0])
}

func TestSearchLines_PreservesRecordsInOrder(t *testing.T) {
	body := `[
		{"cl":1273,"lc":false,"lt":"8000","sl":1,"tl":10,"tp":"PCA.RAMOS DE AZEVEDO","ts":"TERMINAL LAPA"},
		{"cl":34041,"lc":false,"lt":"8000","sl":2,"tl":10,"tp":"PCA.RAMOS DE AZEVEDO","ts":"TERMINAL LAPA"},
		{"cl":33103,"lc":true,"lt":"6200","sl":1,"tl":10,"tp":"TERM. BANDEIRA","ts":"TERM. BANDEIRA"}
	]`
	up := &upstream{routes: map[string]http.HandlerFunc{PathLineSearch: respond(body)}}
	c, _ := newTestClient(t, up)

	lines, err := c.SearchLines(testContext(t), "8000")
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Code: 1273, Number: "8000", Direction: 1, Suffix: 10, MainTerminal: "PCA.RAMOS DE AZEVEDO", SecondaryTerminal: "TERMINAL LAPA"},
		{Code: 34041, Number: "8000", Direction: 2, Suffix: 10, MainTerminal: "PCA.RAMOS DE AZEVEDO", SecondaryTerminal: "TERMINAL LAPA"},
		{Code: 33103, Circular: true, Number: "6200", Direction: 1, Suffix: 10, MainTerminal: "TERM. BANDEIRA", SecondaryTerminal: "TERM. BANDEIRA"},
	}, lines)
}

func TestSearchStops_Scenario(t *testing.T) {
	var gotTerm string
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathStopSearch: func(w http.ResponseWriter, r *http.Request) {
			gotTerm = r.URL.Query().Get("termosBusca")
			writeBody(w, http.StatusOK, `[{"cp":1001,"np":"Av Paulista","ed":"Altura 900","py":-23.5,"px":-46.6}]`)
		},
	}}
	c, _ := newTestClient(t, up)

	stops, err := c.SearchStops(testContext(t), "Paulista")
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "Paulista", gotTerm)
	assert.Equal(t, Stop{Code: 1001, Name: "Av Paulista", Address: "Altura 900", Lat: -23.5, Lon: -46.6}, stops[0])
}

func TestLinesByStop_ServerErrorYieldsEmpty(t *testing.T) {
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathLinesByStop: func(w http.ResponseWriter, _ *http.Request) {
			writeBody(w, http.StatusInternalServerError, `{"Message":"An error has occurred."}`)
		},
	}}
	c, logs := newTestClient(t, up)

	var lines []Line
	var err error
	assert.NotPanics(t, func() {
		lines, err = c.LinesByStop(testContext(t), 1001)
	})
	assert.Equal(t, []Line{}, lines)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Contains(t, logs.String(), `"status":500`)
	assert.Contains(t, logs.String(), `"msg":"request failed"`)
}

func TestArrivalPredictions_Scenario(t *testing.T) {
	var gotStop, gotLine string
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathPredictions: func(w http.ResponseWriter, r *http.Request) {
			gotStop = r.URL.Query().Get("codigoParada")
			gotLine = r.URL.Query().Get("codigoLinha")
			writeBody(w, http.StatusOK, `[{"linha":"8000","sentido":"1","chegada":"5 min"}]`)
		},
	}}
	c, _ := newTestClient(t, up)

	predictions, err := c.ArrivalPredictions(testContext(t), 1001, 2002)
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, "5 min", predictions[0].Arrival)
	assert.Equal(t, "8000", predictions[0].Line)
	assert.Equal(t, "1001", gotStop)
	assert.Equal(t, "2002", gotLine)
}

func TestClient_SendsHeadersAndForwardsEmptyTerm(t *testing.T) {
	var got http.Header
	var hasTerm bool
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathLineSearch: func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			hasTerm = r.URL.Query().Has("termosBusca")
			writeBody(w, http.StatusOK, `[]`)
		},
	}}
	c, _ := newTestClient(t, up, WithUserAgent("olhovivo-test/1"))

	lines, err := c.SearchLines(testContext(t), "")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.True(t, hasTerm, "empty search term is forwarded")
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "olhovivo-test/1", got.Get("User-Agent"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestClient_SendsSessionCookie(t *testing.T) {
	up := &upstream{
		login: func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "apiCredentials", Value: "abc", Path: "/"})
			writeBody(w, http.StatusOK, "true")
		},
		routes: map[string]http.HandlerFunc{
			PathStopSearch: func(w http.ResponseWriter, r *http.Request) {
				cookie, err := r.Cookie("apiCredentials")
				if err != nil || cookie.Value != "abc" {
					writeBody(w, http.StatusUnauthorized, `{"Message":"denied"}`)
					return
				}
				writeBody(w, http.StatusOK, `[]`)
			},
		},
	}
	c, _ := newTestClient(t, up)

	_, err := c.SearchStops(testContext(t), "x")
	assert.NoError(t, err)
}

func TestClient_ReauthenticatesAfterRejectedSession(t *testing.T) {
	newUpstream := func() *upstream {
		return &upstream{routes: map[string]http.HandlerFunc{
			PathStopSearch: func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, http.StatusUnauthorized, `{"Message":"Authorization has been denied for this request."}`)
			},
		}}
	}

	t.Run("enabled clears the session", func(t *testing.T) {
		up := newUpstream()
		c, _ := newTestClient(t, up, WithReauthenticate(true))
		ctx := testContext(t)

		_, err := c.SearchStops(ctx, "x")
		assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
		assert.False(t, c.Authenticated())

		_, _ = c.SearchStops(ctx, "x")
		assert.Equal(t, 2, up.count(PathLogin))
		assert.Equal(t, 2, up.count(PathStopSearch), "no retry inside a single call")
	})

	t.Run("default keeps the session for the client lifetime", func(t *testing.T) {
		up := newUpstream()
		c, _ := newTestClient(t, up)
		ctx := testContext(t)

		_, _ = c.SearchStops(ctx, "x")
		_, _ = c.SearchStops(ctx, "x")
		assert.True(t, c.Authenticated())
		assert.Equal(t, 1, up.count(PathLogin))
	})
}

func TestClient_ConcurrentFirstCallsAllSucceed(t *testing.T) {
	var logins atomic.Int32
	up := &upstream{
		login: func(w http.ResponseWriter, _ *http.Request) {
			logins.Add(1)
			writeBody(w, http.StatusOK, "true")
		},
		routes: map[string]http.HandlerFunc{PathLineSearch: respond(`[{"cl":1}]`)},
	}
	c, _ := newTestClient(t, up)
	ctx := testContext(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines, err := c.SearchLines(ctx, "x")
			if err == nil && len(lines) != 1 {
				err = errors.New("unexpected result length")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, c.Authenticated())
	n := logins.Load()
	assert.GreaterOrEqual(t, n, int32(1))
	assert.LessOrEqual(t, n, int32(callers))
}

func TestRoadSpeeds_DoesNotAuthenticate(t *testing.T) {
	up := &upstream{routes: map[string]http.HandlerFunc{
		PathRoadSpeeds: respond(`[{"id":"a","velocidade":72,"coordinates":[{"lat":-23.5,"lng":-46.6}]}]`),
	}}
	c, _ := newTestClient(t, up)

	roads, err := c.RoadSpeeds(testContext(t))
	require.NoError(t, err)
	require.Len(t, roads, 1)
	assert.True(t, roads[0].Fast())
	assert.Zero(t, up.count(PathLogin))
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	up := &upstream{routes: map[string]http.HandlerFunc{PathRoadSpeeds: respond(`[]`)}}
	c, _ := newTestClient(t, up, WithRateLimit(0.001))

	_, err := c.RoadSpeeds(testContext(t))
	require.NoError(t, err, "first request uses the burst token")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	roads, err := c.RoadSpeeds(ctx)
	assert.Empty(t, roads)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, 1, up.count(PathRoadSpeeds))
}

func TestClient_NilReceiver(t *testing.T) {
	var c *Client
	assert.False(t, c.Authenticate(context.Background()))

	lines, err := c.SearchLines(context.Background(), "x")
	assert.Error(t, err)
	assert.NotNil(t, lines)

	vehicles, err := c.VehiclePositions(context.Background(), 1)
	assert.Error(t, err)
	assert.NotNil(t, vehicles)
}
