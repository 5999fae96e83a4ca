package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"cosmichub-sync/astro"
	"cosmichub-sync/chartsync"
	"cosmichub-sync/database"
	"cosmichub-sync/ephemeris"
	"cosmichub-sync/realtime"
)

// Server exposes the sync registry over HTTP for the UI.
type Server struct {
	registry *chartsync.Registry
	broker   *realtime.Broker
	repo     *database.SyncRepository // optional
}

// NewServer creates the API server.
func NewServer(registry *chartsync.Registry, broker *realtime.Broker, repo *database.SyncRepository) *Server {
	return &Server{registry: registry, broker: broker, repo: repo}
}

// Handler builds the routed handler, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/events", s.broker) // SSE endpoint
	mux.HandleFunc("POST /api/charts", s.handleRegisterChart)
	mux.HandleFunc("GET /api/charts", s.handleListCharts)
	mux.HandleFunc("GET /api/charts/{id}", s.handleGetChart)
	mux.HandleFunc("DELETE /api/charts/{id}", s.handleUnregisterChart)
	mux.HandleFunc("GET /api/charts/{id}/patterns", s.handleChartPatterns)
	mux.HandleFunc("GET /api/charts/{id}/aspects", s.handleChartAspects)
	mux.HandleFunc("GET /api/charts/{id}/upcoming", s.handleUpcomingAspects)
	mux.HandleFunc("POST /api/charts/refresh", s.handleRefreshAll)
	mux.HandleFunc("GET /api/pending", s.handlePending)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// Start starts the HTTP server on the specified port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("🚀 API server listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

type registerRequest struct {
	ID       string                `json:"id"`
	Birth    ephemeris.BirthParams `json:"birth"`
	Settings chartsync.Settings    `json:"settings"`
}

func (s *Server) handleRegisterChart(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	record, err := s.registry.RegisterChart(r.Context(), chartsync.ChartID(req.ID), req.Birth, req.Settings)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetAllCharts())
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	id := chartsync.ChartID(r.PathValue("id"))
	record, ok := s.registry.GetChart(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("chart %s not registered", id))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUnregisterChart(w http.ResponseWriter, r *http.Request) {
	s.registry.UnregisterChart(chartsync.ChartID(r.PathValue("id")))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChartPatterns(w http.ResponseWriter, r *http.Request) {
	id := chartsync.ChartID(r.PathValue("id"))
	record, ok := s.registry.GetChart(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("chart %s not registered", id))
		return
	}

	engine := astro.NewPatternEngine(record.Current.Planets, record.Current.Aspects)
	dominantPlanet, _ := engine.DominantPlanet()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patterns":        engine.DetectAll(),
		"dominantElement": engine.DominantElement().String(),
		"dominantQuality": engine.DominantQuality().String(),
		"dominantPlanet":  dominantPlanet,
		"shape":           engine.ChartShape(),
	})
}

func (s *Server) handleChartAspects(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "aspect journal not configured")
		return
	}

	records, err := s.repo.RecentAspectEvents(r.PathValue("id"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUpcomingAspects(w http.ResponseWriter, r *http.Request) {
	// Always empty until forecasting lands; the endpoint exists so the UI
	// contract is stable.
	upcoming := s.registry.GetUpcomingAspects(chartsync.ChartID(r.PathValue("id")))
	if upcoming == nil {
		upcoming = []astro.AspectEvent{}
	}
	writeJSON(w, http.StatusOK, upcoming)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	s.registry.RefreshAllCharts()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"refreshed": len(s.registry.GetAllCharts()),
		"at":        time.Now(),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.PendingUpdates())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"online": s.registry.Online(),
		"charts": len(s.registry.GetAllCharts()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("⚠️  Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
