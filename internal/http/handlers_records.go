package http

import (
	"net/http"

	"techbiz/internal/auth"
	"techbiz/internal/core"
	"techbiz/internal/log"
)

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	search := ParseSearch(r.URL.Query())
	records, err := s.records.List(r.Context(), search)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	s.render(w, r, http.StatusOK, "grid.html", newGridPage(sess, search, records))
}

// handleRecordsPartial re-renders only the table for live search.
func (s *Server) handleRecordsPartial(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	search := ParseSearch(r.URL.Query())
	records, err := s.records.List(r.Context(), search)
	if err != nil {
		writeServiceError(w, r, err, log.OpList)
		return
	}
	s.render(w, r, http.StatusOK, "records-table", newGridPage(sess, search, records))
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	rec, err := s.records.Add(r.Context(), sess.Role, sess.User)
	if err != nil {
		writeServiceError(w, r, err, log.OpCreate)
		return
	}
	s.appMetrics.recordsCreated.Add(1)
	s.writeRow(w, r, rec, sess, NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerRecordCreated(rec.ID).
		TriggerSuccessNotification("Row added"))
}

func (s *Server) handleEditCell(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	id, err := recordID(r)
	if err != nil {
		errorFragment(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		errorFragment(http.StatusBadRequest, "Invalid request body").Write(w)
		return
	}
	field := core.Field(p.Get("field"))
	rec, err := s.records.EditCell(r.Context(), sess.Role, sess.User, id, field, p.Get("value"))
	if err != nil {
		writeServiceError(w, r, err, log.OpUpdate)
		return
	}
	s.appMetrics.recordsUpdated.Add(1)
	s.writeRow(w, r, rec, sess, NewHTMXResponse().TriggerRecordChanged(rec.ID, string(field)))
}

func (s *Server) handleSetConfirms(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	id, err := recordID(r)
	if err != nil {
		errorFragment(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		errorFragment(http.StatusBadRequest, "Invalid request body").Write(w)
		return
	}
	rec, err := s.records.SetConfirms(r.Context(), sess.Role, sess.User, id, p.GetAll("confirm"))
	if err != nil {
		writeServiceError(w, r, err, log.OpUpdate)
		return
	}
	s.appMetrics.recordsUpdated.Add(1)
	s.writeRow(w, r, rec, sess, NewHTMXResponse().TriggerRecordChanged(rec.ID, "confirms"))
}

// handleDeleteRecord answers with an empty body so htmx removes the row.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.FromContext(r.Context())
	id, err := recordID(r)
	if err != nil {
		errorFragment(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	if err := s.records.Delete(r.Context(), sess.Role, sess.User, id); err != nil {
		writeServiceError(w, r, err, log.OpDelete)
		return
	}
	s.appMetrics.recordsDeleted.Add(1)
	NewHTMXResponse().
		TriggerRecordDeleted(id).
		TriggerSuccessNotification("Row deleted").
		Write(w)
}

// writeRow renders one grid row into the prepared response.
func (s *Server) writeRow(w http.ResponseWriter, r *http.Request, rec core.Record, sess auth.Session, resp *HTMXResponseBuilder) {
	html, err := s.execute("row", newRowView(rec, sess.CanEdit()))
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldRecordID, rec.ID,
			"error_type", log.ErrorTypeInternal)
		errorFragment(http.StatusInternalServerError, "Error rendering row").Write(w)
		return
	}
	resp.BodyHTML(html).Write(w)
}
