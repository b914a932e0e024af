package panel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/db"
	"github.com/springfield-ops/townctl/internal/guard"
	"github.com/springfield-ops/townctl/internal/state"
)

// backend is a fake game server that accepts the token "good".
type backend struct {
	mu         sync.Mutex
	calls      []string
	logoutFail bool
	// validateGate, when set, holds session validation until closed.
	validateGate chan struct{}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/auth/validate_session" && b.validateGate != nil {
		<-b.validateGate
	}
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	logoutFail := b.logoutFail
	b.mu.Unlock()

	switch r.URL.Path {
	case "/api/auth/validate_session":
		if r.Header.Get("Authorization") == "Bearer good" {
			w.Write([]byte(`{"valid":true,"username":"marge","role":"ADMIN"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	case "/api/auth/login":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "donut" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"good","role":"ADMIN"}`))
	case "/api/auth/logout", "/logout":
		if logoutFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true}`))
	case "/api/dashboard/data":
		w.Write([]byte(`{"server_ip":"%SERVER_IP%","game_port":"9090","current_event":"Normal Play",
			"current_event_time":0,"events":{"0":"Normal Play","1700000000":"Halloween"},"unique_clients":4,"uptime":"%UPTIME%"}`))
	case "/api/get-all-users":
		w.Write([]byte(`{"users":[{"email":"bart@example.com"},{"email":"lisa@example.com"}]}`))
	case "/api/get_pending_towns":
		w.Write([]byte(`{"towns":[{"id":7,"email":"bart@example.com","town_name":"Bart Town",
			"description":"**big** town <script>alert(1)</script>","status":"pending","file_size":2048}]}`))
	case "/api/delete-user", "/api/events/reset_time", "/api/server/restart":
		w.Write([]byte(`{"success":true}`))
	case "/api/get-user-save":
		w.Write([]byte(`{"status":"success","save":"land {\n  id: 7\n}\nuser {\n  id: 9 <b>\n}\n"}`))
	case "/api/admin/view_user":
		if r.URL.Query().Get("email") != "lisa@example.com" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"success":true,"email":"lisa@example.com","token":"admin_view_123","is_admin_view":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *backend) saw(call string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c == call {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, b *backend) (*Server, *state.Store) {
	t.Helper()
	ts := httptest.NewServer(b)
	t.Cleanup(ts.Close)

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ac, err := api.New(ts.URL)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	st := state.NewStore(database)
	srv := New(Config{Addr: "127.0.0.1:0", PublicDashboard: ts.URL + "/public/dashboard"},
		ac, guard.New(ac), st, audit.NewStore(database), nil)
	t.Cleanup(srv.guard.Wait)
	return srv, st
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: api.SessionCookie, Value: token})
	return req
}

func form(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := serve(srv, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestPageWithoutSessionRedirects(t *testing.T) {
	b := &backend{}
	srv, _ := newTestServer(t, b)

	w := serve(srv, httptest.NewRequest("GET", "/users", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=/users" {
		t.Errorf("unexpected redirect %q", loc)
	}
	if b.saw("POST /api/auth/validate_session") {
		t.Error("no validation call expected without a token")
	}
}

func TestPageRendersWhileSessionIsChecked(t *testing.T) {
	b := &backend{validateGate: make(chan struct{})}
	srv, st := newTestServer(t, b)
	release := sync.OnceFunc(func() { close(b.validateGate) })
	t.Cleanup(release)
	if err := st.Set(t.Context(), state.KeySession, "stale"); err != nil {
		t.Fatal(err)
	}

	w := serve(srv, withSession(httptest.NewRequest("GET", "/pending", nil), "stale"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected the page before validation finished, got %d", w.Code)
	}

	release()
	srv.guard.Wait()
	if !b.saw("POST /api/auth/validate_session") {
		t.Error("expected a background validation")
	}
	if _, ok := st.Lookup(t.Context(), state.KeySession); ok {
		t.Error("expected the rejected session to be dropped")
	}
}

func TestAPIWithBadSessionIs401(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, withSession(form("/panel/api/event/reset", url.Values{"confirm": {"yes"}}), "stale"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLoginSetsCookie(t *testing.T) {
	srv, st := newTestServer(t, &backend{})

	w := serve(srv, form("/login", url.Values{"username": {"marge"}, "password": {"donut"}, "next": {"/pending"}}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/pending" {
		t.Errorf("expected redirect to /pending, got %q", loc)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == api.SessionCookie && c.Value == "good" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("expected an HttpOnly session cookie")
	}
	if tok, _ := st.Lookup(t.Context(), state.KeySession); tok != "good" {
		t.Errorf("expected stored session, got %q", tok)
	}
}

func TestLoginFailureRendersError(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, form("/login", url.Values{"username": {"marge"}, "password": {"nope"}}))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid credentials") {
		t.Error("expected the server's message on the login page")
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/users":           "/users",
		"//evil.example":   "/",
		"https://evil.com": "/",
		"/login?next=/x":   "/",
	}
	for in, want := range cases {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDashboardRenders(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, form("/login", url.Values{"username": {"marge"}, "password": {"donut"}}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", w.Code)
	}

	w = serve(srv, withSession(httptest.NewRequest("GET", "/", nil), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"127.0.0.1:9090", "Halloween", "marge", ">4<", ">2<"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, "%SERVER_IP%") || strings.Contains(body, "%UPTIME%") {
		t.Error("template tokens should have been replaced")
	}
}

func (b *backend) count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestEventChangeReloadsButRestartDoesNot(t *testing.T) {
	b := &backend{}
	srv, _ := newTestServer(t, b)

	w := serve(srv, withSession(form("/panel/api/event/reset", url.Values{"confirm": {"yes"}}), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if n := b.count("GET /api/dashboard/data"); n != 1 {
		t.Errorf("expected one reload after the event change, got %d", n)
	}

	w = serve(srv, withSession(form("/panel/api/server/restart", url.Values{"confirm": {"yes"}}), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("restart: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !b.saw("POST /api/server/restart") {
		t.Error("expected the restart request")
	}
	if n := b.count("GET /api/dashboard/data"); n != 1 {
		t.Errorf("restart should not reload the dashboard, got %d loads", n)
	}
}

func TestDeleteUserNeedsConfirm(t *testing.T) {
	b := &backend{}
	srv, _ := newTestServer(t, b)

	w := serve(srv, withSession(form("/panel/api/users/delete", url.Values{"email": {"bart@example.com"}}), "good"))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if b.saw("DELETE /api/delete-user") {
		t.Error("no delete request expected without confirmation")
	}

	w = serve(srv, withSession(form("/panel/api/users/delete", url.Values{"email": {"bart@example.com"}, "confirm": {"yes"}}), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !b.saw("DELETE /api/delete-user") {
		t.Error("expected the delete request after confirmation")
	}

	entries, err := srv.audit.Query(t.Context(), audit.QueryFilter{Action: audit.ActionUserDelete})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 || entries[0].Actor != "marge" {
		t.Errorf("expected two audited attempts by marge, got %+v", entries)
	}
}

func TestPendingRendersMarkdownSafely(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, withSession(httptest.NewRequest("GET", "/pending", nil), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<strong>big</strong>") {
		t.Error("expected rendered markdown")
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("raw HTML from the description must not be rendered")
	}
	if !strings.Contains(body, "/panel/api/pending/7/approve") {
		t.Error("expected approve action for submission 7")
	}
	if !strings.Contains(body, "2.0 KB") {
		t.Error("expected the submission size")
	}
}

func TestSaveViewerHighlightsAndWraps(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, withSession(httptest.NewRequest("GET", "/save?email=bart%40example.com&find=id%3A&i=1", nil), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `<mark id="match">id:</mark> 9`) {
		t.Error("expected the second match to be highlighted")
	}
	if !strings.Contains(body, "Match 2 of 2 at line 5, column 3") {
		t.Error("expected the match position")
	}
	// Both neighbours of the last match wrap around to the first.
	if strings.Count(body, "i=0#match") != 2 {
		t.Error("expected previous and next to point at match 1")
	}
	if strings.Contains(body, "9 <b>") {
		t.Error("save text must be escaped")
	}

	w = serve(srv, withSession(httptest.NewRequest("GET", "/save?email=bart%40example.com&find=donuts", nil), "good"))
	if !strings.Contains(w.Body.String(), "No matches for") {
		t.Error("expected the no-match message")
	}
}

func TestLogoutClearsCookieWhenServerFails(t *testing.T) {
	b := &backend{logoutFail: true}
	srv, st := newTestServer(t, b)
	if err := st.Set(t.Context(), state.KeySession, "good"); err != nil {
		t.Fatal(err)
	}

	w := serve(srv, withSession(httptest.NewRequest("GET", "/logout", nil), "good"))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != guard.LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", w.Code, w.Header().Get("Location"))
	}
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == api.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the session cookie to be cleared")
	}
	if _, ok := st.Lookup(t.Context(), state.KeySession); ok {
		t.Error("expected the stored session to be cleared")
	}
}

func TestViewAsReturnsDashboardURL(t *testing.T) {
	b := &backend{}
	srv, st := newTestServer(t, b)

	// Only lisa can be viewed, so the grant fails and nothing is written.
	w := serve(srv, withSession(form("/panel/api/users/view-as", url.Values{"email": {"bart@example.com"}}), "good"))
	if w.Code == http.StatusOK {
		t.Fatalf("expected failure, got 200")
	}
	if _, ok := st.PublicSession(t.Context()); ok {
		t.Error("no public session expected after a failed grant")
	}
}

func TestViewAsRedirectCarriesCredential(t *testing.T) {
	srv, st := newTestServer(t, &backend{})

	w := serve(srv, withSession(form("/panel/api/users/view-as", url.Values{"email": {"lisa@example.com"}}), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Success  bool   `json:"success"`
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	u, err := url.Parse(out.Redirect)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if u.Path != "/public/dashboard" {
		t.Errorf("unexpected redirect path %q", u.Path)
	}
	if got := u.Query().Get("view_as_user"); got != "lisa@example.com" {
		t.Errorf("view_as_user = %q", got)
	}
	if got := u.Query().Get("token"); got != "admin_view_123" {
		t.Errorf("token = %q", got)
	}
	sess, ok := st.PublicSession(t.Context())
	if !ok || sess.Token != "admin_view_123" {
		t.Errorf("expected the stored view credential, got %+v", sess)
	}
}

func TestLiveWebsocket(t *testing.T) {
	b := &backend{}
	ts := httptest.NewServer(b)
	defer ts.Close()

	ac, err := api.New(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	pollers := dashboard.NewPollers(ac.WithSession("good"))
	srv := New(Config{}, ac, guard.New(ac), nil, nil, pollers)

	ps := httptest.NewServer(srv.Router())
	defer ps.Close()

	header := http.Header{}
	header.Set("Cookie", api.SessionCookie+"=good")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ps.URL, "http")+"/ws/live", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first dashboard.Live
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Players != dashboard.Unknown {
		t.Errorf("expected initial Unknown, got %q", first.Players)
	}

	// Wait for the connection to be registered before polling.
	deadline := time.Now().Add(2 * time.Second)
	for srv.live.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	pollers.PollPlayers(t.Context())

	var next dashboard.Live
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read: %v", err)
	}
	if next.Players != "4" {
		t.Errorf("expected 4 players, got %q", next.Players)
	}
}

func TestPrefsToggleThemeAndColumns(t *testing.T) {
	srv, st := newTestServer(t, &backend{})

	for _, pref := range []string{"dark", "advanced"} {
		w := serve(srv, withSession(form("/panel/api/prefs", url.Values{"pref": {pref}}), "good"))
		if w.Code != http.StatusOK {
			t.Fatalf("toggle %s: expected 200, got %d", pref, w.Code)
		}
	}
	if !st.Bool(t.Context(), state.KeyDarkMode) || !st.Bool(t.Context(), state.KeyAdvancedMode) {
		t.Fatal("expected both preferences to be stored")
	}

	w := serve(srv, withSession(httptest.NewRequest("GET", "/users?all=1", nil), "good"))
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Error("expected the dark theme")
	}
	if !strings.Contains(body, "Mayhem ID") {
		t.Error("expected the advanced columns")
	}

	w = serve(srv, withSession(form("/panel/api/prefs", url.Values{"pref": {"font"}}), "good"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown pref: expected 400, got %d", w.Code)
	}
}

func TestGameGridOffersViewAsAndSave(t *testing.T) {
	srv, _ := newTestServer(t, &backend{})

	w := serve(srv, withSession(httptest.NewRequest("GET", "/users?all=1", nil), "good"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Count(body, "/panel/api/users/view-as") != 2 {
		t.Error("expected a view-as action on each game user")
	}
	if !strings.Contains(body, "/save?email=bart%40example.com") {
		t.Error("expected a save link for bart")
	}
}
