package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeTriggers(t *testing.T, rr *httptest.ResponseRecorder) map[string]map[string]any {
	t.Helper()
	raw := rr.Header().Get("HX-Trigger")
	if raw == "" {
		t.Fatal("HX-Trigger header not set")
	}
	var got map[string]map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("HX-Trigger is not a JSON object: %v (%s)", err, raw)
	}
	return got
}

func TestResponse_RowEvents(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerRecordCreated(7).
		TriggerRecordChanged(7, "income").
		TriggerSuccessNotification("Row added").
		BodyHTML(`<tr id="record-7"></tr>`).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rr.Header().Get("Content-Length"); cl != "23" {
		t.Errorf("Content-Length = %q, want 23", cl)
	}

	ev := decodeTriggers(t, rr)
	if ev[eventRecordCreated]["id"] != float64(7) {
		t.Errorf("created = %v", ev[eventRecordCreated])
	}
	if ev[eventRecordChanged]["field"] != "income" {
		t.Errorf("changed = %v", ev[eventRecordChanged])
	}
	toast := ev[eventNotification]
	if toast["type"] != "success" || toast["message"] != "Row added" || toast["duration"] != float64(successToastMs) {
		t.Errorf("notification = %v", toast)
	}
}

func TestResponse_DeleteHasNoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().TriggerRecordDeleted(12).Write(rr)

	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("got %d %q, want empty 200", rr.Code, rr.Body.String())
	}
	if ev := decodeTriggers(t, rr); ev[eventRecordDeleted]["id"] != float64(12) {
		t.Errorf("deleted = %v", ev[eventRecordDeleted])
	}
}

func TestResponse_NoTriggersNoHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Redirect("/login").Write(rr)

	if rr.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger set without events")
	}
	if got := rr.Header().Get("HX-Redirect"); got != "/login" {
		t.Errorf("HX-Redirect = %q", got)
	}
}

func TestResponse_Attachment(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Attachment("records_20240301.csv", "text/csv; charset=utf-8", []byte("id\n1\n")).Write(rr)

	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="records_20240301.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if cl := rr.Header().Get("Content-Length"); cl != "5" {
		t.Errorf("Content-Length = %q, want 5", cl)
	}
	if rr.Body.String() != "id\n1\n" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestErrorFragment(t *testing.T) {
	tests := []struct {
		status  int
		message string
		want    string
	}{
		{http.StatusUnprocessableEntity, "quantity must not be negative", `<div class="error">quantity must not be negative</div>`},
		{http.StatusBadRequest, `bad <field> & "value"`, `<div class="error">bad &lt;field&gt; &amp; &#34;value&#34;</div>`},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		errorFragment(tt.status, tt.message).Write(rr)

		if rr.Code != tt.status {
			t.Errorf("status = %d, want %d", rr.Code, tt.status)
		}
		if rr.Body.String() != tt.want {
			t.Errorf("body = %q, want %q", rr.Body.String(), tt.want)
		}
		toast := decodeTriggers(t, rr)[eventNotification]
		if toast["type"] != "error" || toast["message"] != tt.message {
			t.Errorf("notification = %v", toast)
		}
	}
}
