package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/five82/olhovivo/internal/sptrans"
)

func login(t *testing.T, s *Server, token string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, sptrans.PathLogin+"?token="+token, nil))
	if rec.Code != http.StatusOK {
		return nil
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("login succeeded without a %s cookie", CookieName)
	return nil
}

func get(s *Server, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestDefaultDatasetLoads(t *testing.T) {
	ds := DefaultDataset()
	if len(ds.Lines) == 0 || len(ds.Stops) == 0 || len(ds.Roads) == 0 {
		t.Fatalf("embedded dataset is incomplete: %+v", ds)
	}
	if len(ds.Vehicles[1273]) != 2 {
		t.Fatalf("vehicles for 1273 = %d, want 2", len(ds.Vehicles[1273]))
	}
}

func TestLoginRejectsWrongToken(t *testing.T) {
	s := New(Config{Token: "dev"})
	if c := login(t, s, "nope"); c != nil {
		t.Fatalf("wrong token produced a cookie")
	}
	if s.Hits(sptrans.PathLogin) != 1 {
		t.Fatalf("login hits = %d, want 1", s.Hits(sptrans.PathLogin))
	}

	empty := New(Config{})
	if c := login(t, empty, ""); c != nil {
		t.Fatalf("server without a token must reject every login")
	}
}

func TestDataEndpointsRequireSession(t *testing.T) {
	s := New(Config{Token: "dev"})
	rec := get(s, sptrans.PathStopSearch+"?termosBusca=x", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	cookie := login(t, s, "dev")
	if rec := get(s, sptrans.PathStopSearch+"?termosBusca=x", cookie); rec.Code != http.StatusOK {
		t.Fatalf("status with cookie = %d, want 200", rec.Code)
	}

	s.ExpireSessions()
	if rec := get(s, sptrans.PathStopSearch+"?termosBusca=x", cookie); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status after expiry = %d, want 401", rec.Code)
	}
}

func TestSearchStopsMatchesCaseInsensitively(t *testing.T) {
	s := New(Config{Token: "dev"})
	cookie := login(t, s, "dev")

	rec := get(s, sptrans.PathStopSearch+"?termosBusca=paulista", cookie)
	var stops []sptrans.Stop
	if err := json.Unmarshal(rec.Body.Bytes(), &stops); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stops) != 2 || stops[0].Code != 1001 {
		t.Fatalf("stops = %+v, want 1001 and 1002", stops)
	}
}

func TestVehiclesUseEnvelope(t *testing.T) {
	s := New(Config{Token: "dev"})
	cookie := login(t, s, "dev")

	rec := get(s, sptrans.PathVehicles+"?codigoLinha=99999", cookie)
	if !strings.Contains(rec.Body.String(), `"vs":[]`) {
		t.Fatalf("body = %s, want empty vs array", rec.Body.String())
	}

	rec = get(s, sptrans.PathVehicles+"?codigoLinha=abc", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPrefixMountsRoutes(t *testing.T) {
	s := New(Config{Token: "dev", Prefix: "/v2.1/"})
	if rec := get(s, "/v2.1"+sptrans.PathRoadSpeeds, nil); rec.Code != http.StatusOK {
		t.Fatalf("prefixed road speeds = %d, want 200", rec.Code)
	}
	if rec := get(s, sptrans.PathRoadSpeeds, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unprefixed road speeds = %d, want 404", rec.Code)
	}
	if s.Hits(sptrans.PathRoadSpeeds) != 1 {
		t.Fatalf("road hits = %d, want 1", s.Hits(sptrans.PathRoadSpeeds))
	}
}

func TestListen(t *testing.T) {
	running, err := Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := running.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}()

	client, err := sptrans.NewClient(running.BaseURL, running.Token)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	stops, err := client.SearchStops(context.Background(), "paulista")
	if err != nil {
		t.Fatalf("SearchStops: %v", err)
	}
	if len(stops) == 0 {
		t.Fatalf("expected stops from the demo server")
	}
}
