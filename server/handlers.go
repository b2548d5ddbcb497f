package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ctessum/sparse"
	"github.com/goccy/go-json"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/auth"
	"github.com/jonwraymond/regrid/index"
	"github.com/jonwraymond/regrid/observe"
	"github.com/jonwraymond/regrid/regrid"
	"github.com/jonwraymond/regrid/resilience"
)

// RegridRequest is the body of POST /v1/regrid.
type RegridRequest struct {
	Values []float64      `json:"values"`
	Shape  []int          `json:"shape,omitempty"`
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
	Method string         `json:"method,omitempty"`
}

// RegridResponse is the body returned by POST /v1/regrid.
type RegridResponse struct {
	Values []float64      `json:"values"`
	Shape  []int          `json:"shape"`
	Output map[string]any `json:"output"`
}

// IndexResponse summarises the matrix index.
type IndexResponse struct {
	Entries  int            `json:"entries"`
	Matrices []MatrixInfo   `json:"matrices"`
	Dropped  []DroppedEntry `json:"dropped,omitempty"`
}

// MatrixInfo describes one index entry.
type MatrixInfo struct {
	Name    string         `json:"name"`
	Input   map[string]any `json:"input"`
	Output  map[string]any `json:"output"`
	Method  string         `json:"method"`
	Engine  string         `json:"engine,omitempty"`
	Version string         `json:"version,omitempty"`
	Memory  int64          `json:"memory,omitempty"`
}

// DroppedEntry is an index entry that failed to parse.
type DroppedEntry struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func (req *RegridRequest) values() (*sparse.DenseArray, error) {
	if req.Values == nil {
		return nil, regrid.ErrNilValues
	}
	shape := req.Shape
	if len(shape) == 0 {
		shape = []int{len(req.Values)}
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: shape %v", ErrBadRequest, shape)
		}
		// Stop before the product can exceed the value count or overflow.
		if n > len(req.Values)/d {
			return nil, fmt.Errorf("%w: shape %v holds more than %d values", ErrBadRequest, shape, len(req.Values))
		}
		n *= d
	}
	if n != len(req.Values) {
		return nil, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrBadRequest, shape, n, len(req.Values))
	}
	a := sparse.ZerosDense(shape...)
	copy(a.Elements, req.Values)
	return a, nil
}

func (s *Server) handleRegrid(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, resilience.ErrRateLimitExceeded)
		return
	}

	var req RegridRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	values, err := req.values()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.svc.Regrid(r.Context(), regrid.Request{
		Values: values,
		Input:  req.Input,
		Output: req.Output,
		Method: req.Method,
	})
	if err != nil {
		s.config.Logger.Warn(r.Context(), "regrid failed", observe.F("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegridResponse{
		Values: res.Values.Elements,
		Shape:  res.Values.Shape,
		Output: res.Output,
	})
}

func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.DB.Cache().Info())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.svc.DB.Cache().Clear()
	s.config.Logger.Info(r.Context(), "memory cache cleared", observe.F("principal", principal(r)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ix, err := s.svc.DB.Index(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse(ix))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := s.svc.DB.Reload(r.Context(), force); err != nil {
		writeError(w, err)
		return
	}
	s.handleIndex(w, r)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := s.decode(w, r, &values); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Store.SetMany(values); err != nil {
		writeError(w, err)
		return
	}
	s.config.Logger.Info(r.Context(), "configuration changed",
		observe.F("keys", len(values)), observe.F("principal", principal(r)))
	writeJSON(w, http.StatusOK, s.svc.DB.Cache().Info())
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	u, ok := s.svc.DB.Accessor().(*accessor.URL)
	if !ok {
		writeError(w, ErrNoDownloads)
		return
	}
	downloads, err := u.Downloads()
	if err != nil {
		writeError(w, err)
		return
	}
	if downloads == nil {
		downloads = []accessor.Download{}
	}
	writeJSON(w, http.StatusOK, downloads)
}

// principal names the admin caller, or "anonymous" when the admin endpoints
// are open.
func principal(r *http.Request) string {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return id.Principal
	}
	return "anonymous"
}

func indexResponse(ix *index.Index) IndexResponse {
	resp := IndexResponse{Entries: ix.Len(), Matrices: make([]MatrixInfo, 0, ix.Len())}
	for _, e := range ix.Entries() {
		resp.Matrices = append(resp.Matrices, MatrixInfo{
			Name:    e.Name,
			Input:   e.Input.Map(),
			Output:  e.Output.Map(),
			Method:  e.MethodName(),
			Engine:  e.Interpolation.Engine,
			Version: e.Interpolation.Version,
			Memory:  e.Memory,
		})
	}
	for _, d := range ix.Dropped() {
		resp.Dropped = append(resp.Dropped, DroppedEntry{Name: d.Name, Error: d.Err.Error()})
	}
	return resp
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), map[string]string{"error": err.Error()})
}
