package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
)

// Grid events announced through HX-Trigger so other page fragments (totals,
// counters) can refresh themselves.
const (
	eventRecordCreated = "record:created"
	eventRecordChanged = "record:changed"
	eventRecordDeleted = "record:deleted"
	eventNotification  = "show-notification"
)

// Toast durations understood by static/app.js.
const (
	successToastMs = 3000
	errorToastMs   = 5000
)

// HTMXResponseBuilder assembles a response with optional HX-Trigger events.
// Handlers chain calls and finish with Write.
type HTMXResponseBuilder struct {
	status   int
	header   http.Header
	triggers map[string]any
	body     []byte
}

// NewHTMXResponse starts a 200 response with no body.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status:   http.StatusOK,
		header:   make(http.Header),
		triggers: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Trigger adds an event to HX-Trigger. A repeated name replaces the earlier payload.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

func (b *HTMXResponseBuilder) TriggerRecordCreated(id int64) *HTMXResponseBuilder {
	return b.Trigger(eventRecordCreated, map[string]int64{"id": id})
}

// TriggerRecordChanged reports which column of the row was written; confirm
// edits use the pseudo field "confirms".
func (b *HTMXResponseBuilder) TriggerRecordChanged(id int64, field string) *HTMXResponseBuilder {
	return b.Trigger(eventRecordChanged, map[string]any{"id": id, "field": field})
}

func (b *HTMXResponseBuilder) TriggerRecordDeleted(id int64) *HTMXResponseBuilder {
	return b.Trigger(eventRecordDeleted, map[string]int64{"id": id})
}

func (b *HTMXResponseBuilder) notify(kind, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(eventNotification, map[string]any{
		"type":     kind,
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.notify("success", message, successToastMs)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.notify("error", message, errorToastMs)
}

// Redirect asks htmx to perform a full page navigation.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	return b.Header("HX-Redirect", url)
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	return b.Content("text/html; charset=utf-8", []byte(html))
}

// Content sets a typed body with its length.
func (b *HTMXResponseBuilder) Content(contentType string, body []byte) *HTMXResponseBuilder {
	b.header.Set("Content-Type", contentType)
	b.header.Set("Content-Length", strconv.Itoa(len(body)))
	b.body = body
	return b
}

// Attachment is Content served as a download under filename.
func (b *HTMXResponseBuilder) Attachment(filename, contentType string, body []byte) *HTMXResponseBuilder {
	b.header.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return b.Content(contentType, body)
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	dst := w.Header()
	for name, values := range b.header {
		dst[name] = values
	}
	if len(b.triggers) > 0 {
		if payload, err := json.Marshal(b.triggers); err == nil {
			dst.Set("HX-Trigger", string(payload))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// errorFragment is the error shape every handler returns: an escaped message
// for the swap target plus a toast.
func errorFragment(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		TriggerErrorNotification(message).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}
