package http

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"techbiz/internal/core"
	"techbiz/internal/export"
	"techbiz/internal/log"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", export.ContentTypeCSV, export.CSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", export.ContentTypeXLSX, export.XLSX)
}

// export downloads the records visible under the current grid search.
func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []core.Record) error) {
	records, err := s.records.List(r.Context(), ParseSearch(r.URL.Query()))
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, records); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentExport).ErrorContext(r.Context(), "Export failed",
			"format", ext,
			log.FieldError, err,
			"error_type", log.ErrorTypeInternal)
		errorFragment(http.StatusInternalServerError, "Error exporting records").Write(w)
		return
	}
	s.appMetrics.exports.Add(1)
	log.FromContext(r.Context()).WithComponent(log.ComponentExport).InfoContext(r.Context(), "Records exported",
		"format", ext,
		log.FieldCount, len(records))

	NewHTMXResponse().
		Attachment(export.Filename(ext, time.Now()), contentType, buf.Bytes()).
		Write(w)
}
