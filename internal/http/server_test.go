package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"techbiz/internal/auth"
	"techbiz/internal/core"
	"techbiz/internal/services"
	"techbiz/internal/store/memory"
)

func testRecords() []core.Record {
	return []core.Record{
		{ID: 1, Name: "Marco Bianchi", Date: "2024-01-08", Place: "Milano", ServiceType: "Repair",
			Income: core.Num(200), Cost: core.Num(50), Hours: core.Num(2), Status: "Done"},
		{ID: 2, Name: "Anna Neri", Date: "2024-02-10", Place: "Como", ServiceType: "Inspection",
			Income: core.Num(90), Cost: core.Absent(), Hours: core.Num(1), Status: "Pending"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New(testRecords())
	users := auth.NewDirectory([]string{"alice"}, []string{"bob"}, "secret", time.Hour)
	srv := NewServer(":0", services.NewRecordService(store, nil), users, Options{AnalyticsCacheTTL: time.Minute})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// do sends a request signed in as user; an empty user sends no cookies.
func do(t *testing.T, srv *Server, user, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieAuth, Value: "true"})
		req.AddCookie(&http.Cookie{Name: auth.CookieUser, Value: url.QueryEscape(user)})
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "", http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}

	rr = do(t, srv, "", http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("readyz body: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("readyz status = %q", body.Status)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAnonymousRequestsAreRedirected(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "", http.MethodGet, "/analytics", nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login?next=%2Fanalytics" {
		t.Errorf("Location = %q", loc)
	}

	req := httptest.NewRequest(http.MethodGet, "/ui/records", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("htmx status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("HX-Redirect") == "" {
		t.Error("htmx request missing HX-Redirect")
	}
}

func TestLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "", http.MethodGet, "/login", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `name="password"`) {
		t.Fatalf("login page status = %d", rr.Code)
	}

	rr = do(t, srv, "", http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid username or password") {
		t.Error("bad password page missing error")
	}

	rr = do(t, srv, "", http.MethodPost, "/login", url.Values{
		"username": {"alice"}, "password": {"secret"}, "next": {"/analytics"},
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/analytics" {
		t.Errorf("Location = %q, want /analytics", loc)
	}
	cookies := map[string]string{}
	for _, c := range rr.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	if cookies[auth.CookieAuth] != "true" || cookies[auth.CookieUser] != "alice" {
		t.Errorf("cookies = %v", cookies)
	}

	rr = do(t, srv, "", http.MethodPost, "/login", url.Values{
		"username": {"alice"}, "password": {"secret"}, "next": {"https://evil.example"},
	})
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("offsite next Location = %q, want /", loc)
	}

	rr = do(t, srv, "alice", http.MethodPost, "/logout", url.Values{})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Errorf("logout status = %d Location = %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestGridRendersForBothRoles(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "alice", http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin grid status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Marco Bianchi", "Add row", "/records/1/cell", "Export CSV"} {
		if !strings.Contains(body, want) {
			t.Errorf("admin grid missing %q", want)
		}
	}

	rr = do(t, srv, "bob", http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read-only grid status = %d", rr.Code)
	}
	body = rr.Body.String()
	if !strings.Contains(body, "Anna Neri") {
		t.Error("read-only grid missing record")
	}
	if strings.Contains(body, "Add row") || strings.Contains(body, "/cell") {
		t.Error("read-only grid offers editing")
	}
}

func TestSearchPartial(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "bob", http.MethodGet, "/ui/records?q=anna", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Anna Neri") || strings.Contains(body, "Marco Bianchi") {
		t.Errorf("search partial did not filter: %s", body)
	}
	if strings.Contains(body, "<html") {
		t.Error("partial rendered the full page")
	}

	rr = do(t, srv, "bob", http.MethodGet, "/ui/records?q=anna&field=place", nil)
	if strings.Contains(rr.Body.String(), "Anna Neri") {
		t.Error("search matched outside the selected fields")
	}
}

func TestReadOnlyCannotMutate(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		method, target string
		form           url.Values
	}{
		{http.MethodPost, "/records", url.Values{}},
		{http.MethodPost, "/records/1/cell", url.Values{"field": {"income"}, "value": {"1"}}},
		{http.MethodPost, "/records/1/confirms", url.Values{"confirm": {"room"}}},
		{http.MethodDelete, "/records/1", nil},
	}
	for _, c := range cases {
		rr := do(t, srv, "bob", c.method, c.target, c.form)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s %s status = %d, want 403", c.method, c.target, rr.Code)
		}
	}

	rec, err := srv.records.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Income.Value() != 200 || rec.Confirms.Len() != 0 {
		t.Errorf("record changed by read-only user: %+v", rec)
	}
}

func TestAddEditConfirmDelete(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "alice", http.MethodPost, "/records", url.Values{})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d", rr.Code)
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, `"record:created":{"id":3}`) {
		t.Errorf("add trigger = %s", trig)
	}
	if !strings.Contains(rr.Body.String(), `id="record-3"`) {
		t.Error("add did not return the new row")
	}

	rr = do(t, srv, "alice", http.MethodPost, "/records/3/cell", url.Values{"field": {"income"}, "value": {"150"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `value="150"`) {
		t.Error("edited row missing new value")
	}

	for _, bad := range []url.Values{
		{"field": {"income"}, "value": {"-5"}},
		{"field": {"date"}, "value": {"03/04/2024"}},
		{"field": {"bogus"}, "value": {"x"}},
	} {
		rr = do(t, srv, "alice", http.MethodPost, "/records/3/cell", bad)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("edit %v status = %d, want 422", bad, rr.Code)
		}
	}

	rr = do(t, srv, "alice", http.MethodPost, "/records/3/confirms", url.Values{"confirm": {"room"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "row-yellow") {
		t.Errorf("one confirm status = %d", rr.Code)
	}
	rr = do(t, srv, "alice", http.MethodPost, "/records/3/confirms", url.Values{"confirm": {"room", "office", "room"}})
	if !strings.Contains(rr.Body.String(), "row-green") {
		t.Error("two confirms should mark the row green")
	}
	rr = do(t, srv, "alice", http.MethodPost, "/records/3/confirms", url.Values{"confirm": {"garage"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown confirm status = %d", rr.Code)
	}

	rr = do(t, srv, "alice", http.MethodDelete, "/records/3", nil)
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Fatalf("delete status = %d body=%q", rr.Code, rr.Body.String())
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, `"record:deleted":{"id":3}`) {
		t.Errorf("delete trigger = %s", trig)
	}

	rr = do(t, srv, "alice", http.MethodPost, "/records/3/delete", url.Values{})
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
	rr = do(t, srv, "alice", http.MethodPost, "/records/abc/cell", url.Values{"field": {"name"}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rr.Code)
	}

	rr = do(t, srv, "alice", http.MethodPost, "/records", url.Values{})
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"record:created":{"id":4}`) {
		t.Error("deleted id was reused")
	}
}

func TestAnalyticsPageAndCharts(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "bob", http.MethodGet, "/analytics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("analytics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Revenue by date", "Profit by service type", "<svg", "Marco Bianchi", "Inspection"} {
		if !strings.Contains(body, want) {
			t.Errorf("analytics page missing %q", want)
		}
	}

	rr = do(t, srv, "bob", http.MethodGet, "/analytics?service=Repair&from=2024-01-01&to=2024-01-31", nil)
	if !strings.Contains(rr.Body.String(), "Clear") {
		t.Error("filtered page should offer to clear the filter")
	}

	rr = do(t, srv, "bob", http.MethodGet, "/analytics/charts/revenue-by-date.svg", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("svg status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != contentTypeSVG {
		t.Errorf("svg Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "<svg") {
		t.Error("svg body does not start with <svg")
	}

	rr = do(t, srv, "bob", http.MethodGet, "/analytics/charts/income-by-name.png?service=Repair", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("png status = %d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Body.String(), "\x89PNG") {
		t.Error("png body is not a PNG")
	}

	for _, target := range []string{"/analytics/charts/unknown.svg", "/analytics/charts/revenue-by-date.gif", "/analytics/charts/revenue-by-date"} {
		rr = do(t, srv, "bob", http.MethodGet, target, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", target, rr.Code)
		}
	}
}

func TestAnalyticsCacheFollowsStoreVersion(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	first, err := srv.summarize(ctx, core.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Summary.TotalIncome != 290 {
		t.Fatalf("TotalIncome = %v, want 290", first.Summary.TotalIncome)
	}
	if again, _ := srv.summarize(ctx, core.Filter{}); again.Version != first.Version {
		t.Errorf("cached version = %d, want %d", again.Version, first.Version)
	}
	if hits := srv.analyticsCache.Stats().Hits; hits == 0 {
		t.Error("second summarize did not hit the cache")
	}

	if _, err := srv.records.EditCell(ctx, core.RoleAdmin, "alice", 2, core.FieldIncome, "110"); err != nil {
		t.Fatal(err)
	}
	after, err := srv.summarize(ctx, core.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if after.Summary.TotalIncome != 310 {
		t.Errorf("TotalIncome after edit = %v, want 310", after.Summary.TotalIncome)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "bob", http.MethodGet, "/export/records.csv?q=marco", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("csv status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, ".csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "ID,Name,Date") || !strings.Contains(body, "Marco Bianchi") {
		t.Errorf("csv body = %q", body)
	}
	if strings.Contains(body, "Anna Neri") {
		t.Error("csv ignored the search")
	}

	rr = do(t, srv, "bob", http.MethodGet, "/export/records.xlsx", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Error("xlsx body is not a zip archive")
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)

	do(t, srv, "alice", http.MethodPost, "/records", url.Values{})
	rr := do(t, srv, "", http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"records_created_total 1", "http_requests_total", "cache_entries{type=\"analytics\"}"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, "bob", http.MethodGet, "/", nil)
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q", rr.Header().Get("X-Frame-Options"))
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("page Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}

	rr = do(t, srv, "", http.MethodGet, "/static/app.css", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("static status = %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age") {
		t.Errorf("static Cache-Control = %q", cc)
	}
}
