package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/warecross/wms/internal/export"
	"github.com/warecross/wms/internal/ingest"
	"github.com/warecross/wms/internal/mapping"
	"github.com/warecross/wms/internal/metrics"
)

// handleListMappings returns the mapping table, optionally filtered by
// marketplace.
func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	marketplace := r.URL.Query().Get("marketplace")

	mappings, err := s.service.Mapper().Store().List(r.Context(), marketplace)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"mappings": mappings,
		"count":    len(mappings),
	})
}

type addMappingRequest struct {
	RawSKU      string `json:"rawSku"`
	MSKU        string `json:"msku"`
	Marketplace string `json:"marketplace"`
	Overwrite   bool   `json:"overwrite"`
}

// handleAddMapping inserts a single mapping from a JSON body.
func (s *Server) handleAddMapping(w http.ResponseWriter, r *http.Request) {
	var req addMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.RawSKU == "" || req.MSKU == "" || req.Marketplace == "" {
		s.respondError(w, r, http.StatusBadRequest, errors.New("missing required field: rawSku, msku and marketplace are required"))
		return
	}

	err := s.service.Mapper().AddMapping(r.Context(), req.RawSKU, req.MSKU, req.Marketplace, req.Overwrite)
	if err != nil {
		metrics.IncMappingMutation("add", metrics.ResultError)
		switch {
		case errors.Is(err, mapping.ErrDuplicateMapping):
			s.respondError(w, r, http.StatusConflict, err)
		case errors.Is(err, mapping.ErrInvalidSKU):
			s.respondError(w, r, http.StatusUnprocessableEntity, err)
		default:
			s.respondError(w, r, http.StatusInternalServerError, err)
		}
		return
	}

	metrics.IncMappingMutation("add", metrics.ResultSuccess)
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]string{
		"status":      "created",
		"rawSku":      req.RawSKU,
		"msku":        req.MSKU,
		"marketplace": req.Marketplace,
	})
}

// handleRemoveMapping deletes a mapping identified by query parameters.
func (s *Server) handleRemoveMapping(w http.ResponseWriter, r *http.Request) {
	rawSKU := r.URL.Query().Get("sku")
	marketplace := r.URL.Query().Get("marketplace")
	if rawSKU == "" || marketplace == "" {
		s.respondError(w, r, http.StatusBadRequest, errors.New("missing required field: sku and marketplace are required"))
		return
	}

	err := s.service.Mapper().RemoveMapping(r.Context(), rawSKU, marketplace)
	if err != nil {
		metrics.IncMappingMutation("remove", metrics.ResultError)
		if errors.Is(err, mapping.ErrNotFound) {
			s.respondError(w, r, http.StatusNotFound, err)
			return
		}
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	metrics.IncMappingMutation("remove", metrics.ResultSuccess)
	s.writeJSON(w, map[string]string{"status": "deleted"})
}

// handleUploadMappings bulk-loads the mapping table from an uploaded
// CSV or XLSX file with SKU and MSKU columns.
func (s *Server) handleUploadMappings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Processing.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("file too large: %w", err))
		return
	}

	marketplace := r.FormValue("marketplace")
	if _, ok := ingest.Get(marketplace); !ok {
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("unknown marketplace: %s", marketplace))
		return
	}
	overwrite := r.FormValue("overwrite") == "true"

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

	records, err := ingest.ParseFile(header.Filename, data)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, err)
		return
	}

	rows, err := ingest.DecodeMaster(records)
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, err)
		return
	}

	master := make([]mapping.MasterRecord, len(rows))
	for i, row := range rows {
		master[i] = mapping.MasterRecord{
			LineNumber: row.LineNumber,
			RawSKU:     row.RawSKU,
			MSKU:       row.MSKU,
		}
	}

	report, err := s.service.Mapper().LoadMaster(r.Context(), marketplace, master, overwrite)
	if err != nil {
		metrics.IncMappingMutation("load", metrics.ResultError)
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	metrics.IncMappingMutation("load", metrics.ResultSuccess)
	s.logger.Info("master mappings loaded",
		"marketplace", marketplace,
		"file", header.Filename,
		"total", report.Total,
		"loaded", report.Loaded,
		"skipped", report.Skipped,
	)
	s.writeJSON(w, report)
}

// handleExportMappings streams the mapping table as CSV or XLSX.
func (s *Server) handleExportMappings(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	marketplace := r.URL.Query().Get("marketplace")

	mappings, err := s.service.Mapper().Store().List(r.Context(), marketplace)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, err)
		return
	}

	var (
		data        []byte
		contentType string
		fileName    string
	)
	switch format {
	case "csv":
		data, err = export.MappingsCSV(mappings)
		contentType = "text/csv"
		fileName = "sku-mappings.csv"
	case "xlsx":
		data, err = export.MappingsXLSX(mappings)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		fileName = "sku-mappings.xlsx"
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
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Write(data)
}
