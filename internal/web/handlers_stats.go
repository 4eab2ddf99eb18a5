package web

import (
	"net/http"

	"github.com/warecross/wms/internal/core"
	"github.com/warecross/wms/internal/ingest"
)

// handleStats returns dashboard summary data: mapping table size, recent
// runs and limiter occupancy.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.Mapper().Store().Count(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	recent := []core.ProcessingRun{}
	if store := s.service.SalesStore(); store != nil {
		recent, err = store.ListRuns(r.Context(), 10)
		if err != nil {
			s.respondError(w, r, http.StatusInternalServerError, err)
			return
		}
	}

	s.writeJSON(w, map[string]interface{}{
		"mappingCount": count,
		"activeRuns":   s.service.ActiveRunIDs(),
		"limiter":      s.service.Limiter().Status(),
		"recentRuns":   recent,
	})
}

// handleMarketplaces lists the supported marketplace definitions.
func (s *Server) handleMarketplaces(w http.ResponseWriter, r *http.Request) {
	defs := ingest.All()
	out := make([]map[string]string, 0, len(defs))
	for _, def := range defs {
		out = append(out, map[string]string{
			"key":   def.Key,
			"label": def.Label,
		})
	}
	s.writeJSON(w, map[string]interface{}{"marketplaces": out})
}

// handleHealthz is the liveness probe endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// handleDashboard serves the embedded single-page dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}
