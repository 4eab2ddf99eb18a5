package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warecross/wms/internal/core"
	"github.com/warecross/wms/internal/export"
	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/metrics"
)

// handleStartRun accepts a sales-data file for the marketplace in the URL
// and starts an asynchronous processing run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	marketplaceKey := chi.URLParam(r, "marketplace")
	def, ok := ingest.Get(marketplaceKey)
	if !ok {
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("unknown marketplace: %s", marketplaceKey))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Processing.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("file too large: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, fmt.Errorf("read upload: %w", err))
		return
	}
	if len(data) == 0 {
		s.respondError(w, r, http.StatusBadRequest, errors.New("empty file"))
		return
	}

	records, err := ingest.ParseFile(header.Filename, data)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	rows, err := ingest.DecodeSales(def, records)
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	runID, err := s.service.StartRun(r.Context(), marketplaceKey, header.Filename, rows)
	if err != nil {
		if errors.Is(err, core.ErrTooManyRuns) {
			s.respondError(w, r, http.StatusTooManyRequests, err)
			return
		}
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, map[string]interface{}{
		"runId":     runID,
		"totalRows": len(rows),
		"status":    "processing",
	})
}

// handleRunProgress streams run progress as Server-Sent Events.
// Event IDs carry the completion percentage so clients can resume with
// Last-Event-ID and skip frames they have already seen.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, http.StatusNotFound, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	lastEventID := -1
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			lastEventID = id
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case progress, open := <-progressCh:
			if !open {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			percent := progress.Percent()
			if percent <= lastEventID && progress.Phase == core.PhaseMapping {
				continue
			}
			lastEventID = percent

			payload, err := json.Marshal(progress)
			if err != nil {
				s.logger.Error("marshal progress", "run_id", runID, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, payload)
			flusher.Flush()
		}
	}
}

// handleRunSnapshot returns the current progress of a run without blocking.
func (s *Server) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progress, err := s.service.RunProgress(runID)
	if err != nil {
		s.respondError(w, r, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, progress)
}

// handleRunResult blocks until the run finishes and returns the summary
// with per-row results.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, results, err := s.service.RunResult(runID)
	if err != nil {
		s.respondError(w, r, http.StatusNotFound, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"run":     run,
		"results": results,
	})
}

// handleCancelRun requests cancellation of an in-flight run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.service.CancelRun(runID); err != nil {
		s.respondError(w, r, http.StatusNotFound, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleExportRun streams the per-row results of a finished run as CSV
// or XLSX.
func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	run, results, err := s.service.RunResult(runID)
	if err != nil {
		s.respondError(w, r, http.StatusNotFound, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "csv":
		data, err = export.ResultsCSV(results)
		contentType = "text/csv"
	case "xlsx":
		data, err = export.ResultsXLSX(run, results)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("unsupported export format: %s", format))
		return
	}
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	metrics.IncExport(format, metrics.ResultSuccess)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("run-%s.%s", runID, format)))
	w.Write(data)
}

// handleRunReport streams a PDF summary of a finished run.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, _, err := s.service.RunResult(runID)
	if err != nil {
		s.respondError(w, r, http.StatusNotFound, err)
		return
	}

	data, err := export.RunReportPDF(run)
	if err != nil {
		metrics.IncExport("pdf", metrics.ResultError)
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	metrics.IncExport("pdf", metrics.ResultSuccess)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("run-%s.pdf", runID)))
	w.Write(data)
}

// handleListRuns returns recent persisted run summaries, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs := []core.ProcessingRun{}
	if store := s.service.SalesStore(); store != nil {
		var err error
		runs, err = store.ListRuns(r.Context(), limit)
		if err != nil {
			s.respondError(w, r, http.StatusInternalServerError, err)
			return
		}
	}

	s.writeJSON(w, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
