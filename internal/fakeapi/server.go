// Package fakeapi serves a small in-memory imitation of the Olho Vivo API.
// It backs the client tests and the -fake demo mode.
package fakeapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/klauspost/compress/gzhttp"

	"github.com/five82/olhovivo/internal/sptrans"
)

// CookieName is the credential cookie issued by login.
const CookieName = "apiCredentials"

//go:embed dataset.json
var defaultDataset []byte

// Prediction is an arrival estimate keyed by stop and line code.
type Prediction struct {
	Stop     int `json:"stop"`
	LineCode int `json:"line_code"`
	sptrans.ArrivalPrediction
}

// Dataset is everything the fake server can answer with.
type Dataset struct {
	Lines       []sptrans.Line            `json:"lines"`
	Stops       []sptrans.Stop            `json:"stops"`
	StopLines   map[int][]int             `json:"stop_lines"`
	Vehicles    map[int][]sptrans.Vehicle `json:"vehicles"`
	Predictions []Prediction              `json:"predictions"`
	Roads       []sptrans.RoadSegment     `json:"roads"`
}

// DefaultDataset returns the embedded São Paulo sample data.
func DefaultDataset() Dataset {
	var ds Dataset
	if err := json.Unmarshal(defaultDataset, &ds); err != nil {
		panic(fmt.Sprintf("fakeapi: embedded dataset: %v", err))
	}
	return ds
}

// Config configures a Server.
type Config struct {
	Token  string
	Prefix string // e.g. "/v2.1"; empty serves at the root
	Data   *Dataset
}

// Server is an http.Handler imitating the Olho Vivo endpoints.
type Server struct {
	token   string
	data    Dataset
	handler http.Handler

	mu       sync.Mutex
	sessions map[string]bool
	nextID   int
	hits     map[string]int
}

// New builds a Server. A nil Data uses DefaultDataset.
func New(cfg Config) *Server {
	data := DefaultDataset()
	if cfg.Data != nil {
		data = *cfg.Data
	}
	s := &Server{
		token:    cfg.Token,
		data:     data,
		sessions: make(map[string]bool),
		hits:     make(map[string]int),
	}

	prefix := strings.TrimRight(cfg.Prefix, "/")
	router := httprouter.New()
	router.POST(prefix+sptrans.PathLogin, s.count(sptrans.PathLogin, s.login))
	router.GET(prefix+sptrans.PathLineSearch, s.count(sptrans.PathLineSearch, s.requireSession(s.searchLines)))
	router.GET(prefix+sptrans.PathStopSearch, s.count(sptrans.PathStopSearch, s.requireSession(s.searchStops)))
	router.GET(prefix+sptrans.PathLinesByStop, s.count(sptrans.PathLinesByStop, s.requireSession(s.linesByStop)))
	router.GET(prefix+sptrans.PathVehicles, s.count(sptrans.PathVehicles, s.requireSession(s.vehicles)))
	router.GET(prefix+sptrans.PathPredictions, s.count(sptrans.PathPredictions, s.requireSession(s.predictions)))
	router.GET(prefix+sptrans.PathRoadSpeeds, s.count(sptrans.PathRoadSpeeds, s.roads))

	s.handler = gzhttp.GzipHandler(router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Hits returns how many requests reached the endpoint path (unprefixed).
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// ExpireSessions invalidates every issued credential cookie.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]bool)
}

func (s *Server) count(path string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s.mu.Lock()
		s.hits[path]++
		s.mu.Unlock()
		next(w, r, ps)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if r.URL.Query().Get("token") != s.token || s.token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"Message": "invalid token"})
		return
	}
	s.mu.Lock()
	s.nextID++
	value := "session-" + strconv.Itoa(s.nextID)
	s.sessions[value] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: value, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) requireSession(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		cookie, err := r.Cookie(CookieName)
		s.mu.Lock()
		ok := err == nil && s.sessions[cookie.Value]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"Message": "Authorization has been denied for this request.",
			})
			return
		}
		next(w, r, ps)
	}
}

func (s *Server) searchLines(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("termosBusca")))
	out := []sptrans.Line{}
	for _, line := range s.data.Lines {
		if matches(term, line.Number, line.Sign(), line.MainTerminal, line.SecondaryTerminal) {
			out = append(out, line)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) searchStops(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("termosBusca")))
	out := []sptrans.Stop{}
	for _, stop := range s.data.Stops {
		if matches(term, stop.Name, stop.Address) {
			out = append(out, stop)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) linesByStop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stop, ok := intParam(w, r, "codigoParada")
	if !ok {
		return
	}
	out := []sptrans.Line{}
	for _, code := range s.data.StopLines[stop] {
		for _, line := range s.data.Lines {
			if line.Code == code {
				out = append(out, line)
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) vehicles(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	line, ok := intParam(w, r, "codigoLinha")
	if !ok {
		return
	}
	vs := s.data.Vehicles[line]
	if vs == nil {
		vs = []sptrans.Vehicle{}
	}
	writeJSON(w, http.StatusOK, struct {
		Hour     string            `json:"hr"`
		Vehicles []sptrans.Vehicle `json:"vs"`
	}{
		Hour:     time.Now().Format("15:04"),
		Vehicles: vs,
	})
}

func (s *Server) predictions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stop, ok := intParam(w, r, "codigoParada")
	if !ok {
		return
	}
	line, ok := intParam(w, r, "codigoLinha")
	if !ok {
		return
	}
	out := []sptrans.ArrivalPrediction{}
	for _, p := range s.data.Predictions {
		if p.Stop == stop && p.LineCode == line {
			out = append(out, p.ArrivalPrediction)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) roads(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	out := s.data.Roads
	if out == nil {
		out = []sptrans.RoadSegment{}
	}
	writeJSON(w, http.StatusOK, out)
}

func matches(term string, fields ...string) bool {
	if term == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"Message": name + " must be numeric"})
		return 0, false
	}
	return value, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
