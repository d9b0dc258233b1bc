package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modl/pkg/common"
	"modl/pkg/core"
	"modl/pkg/storage"
)

type Server struct {
	engine *core.Engine
}

func NewServer(engine *core.Engine) *Server {
	return &Server{engine: engine}
}

// Handler routes every endpoint on a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/group", s.handleGroup)
	mux.HandleFunc("/api/discretize", s.handleDiscretize)
	mux.HandleFunc("/api/histogram", s.handleHistogram)
	mux.HandleFunc("/api/batch", s.handleBatch)
	mux.HandleFunc("/api/costs", s.handleCosts)
	mux.HandleFunc("/api/costs/export", s.handleExport)
	mux.HandleFunc("/api/costs/import", s.handleImport)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

func (s *Server) Start(port string) {
	log.Printf("[API] Server listening on %s...", port)
	log.Fatal(http.ListenAndServe(port, s.Handler()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodePost checks the method and decodes the JSON body into v.
func decodePost(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) search(w http.ResponseWriter, req core.Request) {
	res, err := s.engine.Run(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Counts []int  `json:"counts"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	s.search(w, core.Request{Name: req.Name, Op: core.OpGroup, Counts: req.Counts})
}

func (s *Server) handleDiscretize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string        `json:"name"`
		Atoms []common.Atom `json:"atoms"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	s.search(w, core.Request{Name: req.Name, Op: core.OpDiscretize, Atoms: req.Atoms})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string    `json:"name"`
		Values []float64 `json:"values"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	s.search(w, core.Request{Name: req.Name, Op: core.OpHistogram, Values: req.Values})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []core.Request `json:"requests"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	results, err := s.engine.Batch(r.Context(), req.Requests)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requests []core.Request `json:"requests"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	batchID, costs, err := s.engine.ExportCosts(r.Context(), req.Requests)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batch_id": batchID, "costs": costs})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Costs []storage.AttributeCost `json:"costs"`
	}
	if !decodePost(w, r, &req) {
		return
	}
	batchID, costs, err := s.engine.ImportCosts(req.Costs)
	switch {
	case errors.Is(err, core.ErrNoCosts):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, storage.ErrInvalidCost):
		// the defaults that replace the imported costs are returned, not stored
		writeJSON(w, http.StatusOK, map[string]interface{}{"costs": costs, "warning": err.Error()})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batch_id": batchID, "costs": costs})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	costs, err := s.engine.LoadCosts(r.URL.Query().Get("batch"))
	if errors.Is(err, core.ErrNoStore) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"costs": costs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := s.engine.Reset(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Cost Store Reset Successful"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
