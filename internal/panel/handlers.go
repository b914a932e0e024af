package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/grid"
	"github.com/springfield-ops/townctl/internal/guard"
	"github.com/springfield-ops/townctl/internal/prompt"
	"github.com/springfield-ops/townctl/internal/state"
	"github.com/springfield-ops/townctl/internal/towns"
)

// client returns the backend client acting with the caller's session.
func (s *Server) client(r *http.Request) *api.Client {
	return s.api.WithSession(guard.TokenFromRequest(r))
}

func actor(r *http.Request) string {
	if info, ok := guard.FromContext(r.Context()); ok && info.Username != "" {
		return info.Username
	}
	return "panel"
}

// confirmer turns the confirm field the page sends after the operator
// accepted the browser dialog into an answer.
func confirmer(r *http.Request) prompt.Confirmer {
	return prompt.Always(r.FormValue("confirm") == "yes")
}

func (s *Server) controller(r *http.Request) *dashboard.Controller {
	c := s.client(r)
	return dashboard.New(c,
		dashboard.WithConfirmer(confirmer(r)),
		dashboard.WithAudit(s.audit, actor(r)),
		dashboard.WithReload(func(ctx context.Context) error {
			d, err := c.DashboardData(ctx)
			if err != nil {
				return err
			}
			log.Printf("panel: current event is now %s", d.CurrentEvent)
			return nil
		}),
	)
}

// pageLoad lets a page render when a session token is present and checks
// the token with the server in the background. A token the server refuses
// is dropped from the local store. It reports false after redirecting to
// the login page.
func (s *Server) pageLoad(w http.ResponseWriter, r *http.Request) (guard.Decision, bool) {
	d := s.guard.Page(r.Context(), guard.TokenFromRequest(r), s.dropSession)
	if !d.Allowed() {
		http.Redirect(w, r, guard.LoginPath, http.StatusFound)
		return d, false
	}
	return d, true
}

func (s *Server) dropSession(ctx context.Context, token string) {
	log.Printf("panel: server rejected the session")
	if s.state == nil {
		return
	}
	if stored, ok := s.state.Lookup(ctx, state.KeySession); !ok || stored != token {
		return
	}
	if err := s.state.ClearStaffSession(ctx); err != nil {
		log.Printf("panel: clearing session: %v", err)
	}
}

func pageActor(d guard.Decision) string {
	if d.Info != nil && d.Info.Username != "" {
		return d.Info.Username
	}
	return "staff"
}

// prefs reads the display preferences. Without a state store the
// defaults apply.
func (s *Server) prefs(ctx context.Context) Prefs {
	if s.state == nil {
		return Prefs{}
	}
	return Prefs{
		Dark:     s.state.Bool(ctx, state.KeyDarkMode),
		Advanced: s.state.Bool(ctx, state.KeyAdvancedMode),
	}
}

// handlePrefs flips one display preference.
func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "no local state store"})
		return
	}
	var key state.Key
	switch r.FormValue("pref") {
	case "dark":
		key = state.KeyDarkMode
	case "advanced":
		key = state.KeyAdvancedMode
	default:
		fail(w, api.Invalid("pref", "must be dark or advanced"))
		return
	}
	if err := s.state.SetBool(r.Context(), key, !s.state.Bool(r.Context(), key)); err != nil {
		fail(w, err)
		return
	}
	ok(w, "")
}

// render buffers the page so a template error does not leave half a page.
func render[P any](w http.ResponseWriter, status int, fn func(io.Writer, P) error, p P) {
	var buf bytes.Buffer
	if err := fn(&buf, p); err != nil {
		log.Printf("panel: render: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, RenderLogin, LoginPage{Prefs: s.prefs(r.Context()), Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	next := safeNext(r.FormValue("next"))

	login, err := s.api.Login(r.Context(), username, r.FormValue("password"))
	if err != nil {
		status := http.StatusUnauthorized
		if !api.IsUnauthorized(err) {
			status = errorStatus(err)
		}
		render(w, status, RenderLogin, LoginPage{Prefs: s.prefs(r.Context()), Next: next, Username: username, Error: api.Message(err)})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookie,
		Value:    login.Token,
		Path:     "/",
		MaxAge:   int(state.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	if s.state != nil {
		if err := s.state.SetWithTTL(r.Context(), state.KeySession, login.Token, state.SessionTTL); err != nil {
			log.Printf("panel: storing session: %v", err)
		}
	}
	s.guard.Remember(login.Token, &api.SessionInfo{Valid: true, Username: username, Role: login.Role})
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this host.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, guard.LoginPath) {
		return "/"
	}
	return next
}

// cookieSessions clears the session cookie and the stored token.
type cookieSessions struct {
	w     http.ResponseWriter
	state *state.Store
}

func (c cookieSessions) ClearStaffSession(ctx context.Context) error {
	http.SetCookie(c.w, &http.Cookie{Name: api.SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if c.state == nil {
		return nil
	}
	return c.state.ClearStaffSession(ctx)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var server guard.Logouter
	if guard.TokenFromRequest(r) != "" {
		server = s.client(r)
	}
	to, err := guard.Logout(r.Context(), server, cookieSessions{w: w, state: s.state})
	if err != nil {
		log.Printf("panel: logout: %v", err)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, ok := s.pageLoad(w, r)
	if !ok {
		return
	}

	snap, err := s.controller(r).Load(r.Context())
	if err != nil {
		if api.IsUnauthorized(err) {
			http.Redirect(w, r, guard.LoginPath, http.StatusFound)
			return
		}
		http.Error(w, api.Message(err), errorStatus(err))
		return
	}

	page := DashboardPage{
		Prefs:    s.prefs(r.Context()),
		Actor:    pageActor(d),
		Data:     snap.Data,
		Schedule: snap.Schedule,
		Users:    len(snap.Users),
		Players:  dashboard.Unknown,
		Uptime:   snap.Data.Uptime.String(),
		Degraded: d.Degraded,
	}
	if n, ok := snap.Data.Players(); ok {
		page.Players = strconv.Itoa(n)
	}
	if snap.UsersErr != nil {
		page.UsersErr = api.Message(snap.UsersErr)
	}
	if s.pollers != nil {
		if live := s.pollers.Live(); !live.At.IsZero() {
			page.Players, page.Uptime = live.Players, live.Uptime
		}
	}
	render(w, http.StatusOK, RenderDashboard, page)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	d, ok := s.pageLoad(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := UsersPage{Prefs: s.prefs(r.Context()), Actor: pageActor(d), Public: q.Get("public") == "1", Field: q.Get("field"), Term: q.Get("term")}
	_, searching := q["term"]
	listAll := q.Get("all") == "1"
	c := s.client(r)

	if page.Public {
		g := grid.New[api.PublicUser](grid.PublicDirectory{API: c})
		page.Fields, page.Columns = api.PublicSearchFields, publicColumns
		rows, v := runGrid(r.Context(), g, page.Field, page.Term, searching, listAll)
		page.Rows, page.Message = publicRows(rows), v.Message
	} else {
		g := grid.New[api.User](grid.GameDirectory{API: c})
		page.Fields, page.Columns = api.SearchFields, gameColumnsFor(page.Advanced)
		rows, v := runGrid(r.Context(), g, page.Field, page.Term, searching, listAll)
		page.Rows, page.Message = gameRows(rows, page.Advanced), v.Message
	}
	render(w, http.StatusOK, RenderUsers, page)
}

// runGrid performs the search or listing the query asked for. Errors are
// already reflected in the view message.
func runGrid[T grid.Record](ctx context.Context, g *grid.Grid[T], field, term string, searching, all bool) ([]T, grid.View[T]) {
	var rows []T
	switch {
	case all:
		rows, _ = g.All(ctx)
	case searching:
		rows, _ = g.Search(ctx, field, term)
	}
	return rows, g.View()
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	d, ok := s.pageLoad(w, r)
	if !ok {
		return
	}

	page := PendingPage{Prefs: s.prefs(r.Context()), Actor: pageActor(d)}
	list, err := towns.New(s.client(r), towns.Staff).Pending(r.Context())
	if err != nil {
		page.Error = api.Message(err)
	}
	page.Towns = pendingRows(list)
	render(w, http.StatusOK, RenderPending, page)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	d, ok := s.pageLoad(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := SavePage{
		Prefs:    s.prefs(r.Context()),
		Actor:    pageActor(d),
		Username: strings.TrimSpace(q.Get("email")),
		Legacy:   q.Get("legacy") == "1",
		Find:     q.Get("find"),
	}
	if page.Username == "" {
		render(w, http.StatusOK, RenderSave, page)
		return
	}
	v, err := s.controller(r).LoadSave(r.Context(), page.Username, page.Legacy)
	if err != nil {
		page.Error = api.Message(err)
		render(w, http.StatusOK, RenderSave, page)
		return
	}
	i, _ := strconv.Atoi(q.Get("i"))
	showMatch(&page, v, i)
	render(w, http.StatusOK, RenderSave, page)
}

func (s *Server) handleLiveSnapshot(w http.ResponseWriter, r *http.Request) {
	live := dashboard.Live{Players: dashboard.Unknown, Uptime: dashboard.Unknown}
	if s.pollers != nil {
		live = s.pollers.Live()
	}
	writeJSON(w, http.StatusOK, live)
}

func (s *Server) handleSetEvent(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("time")), 10, 64)
	if err != nil {
		fail(w, api.Invalid("time", "must be an event timestamp"))
		return
	}
	change, err := s.controller(r).SetEvent(r.Context(), t, r.FormValue("name"))
	if err != nil {
		fail(w, err)
		return
	}
	msg := "Event changed"
	if change != nil && change.CurrentEvent != "" {
		msg = "Event changed to " + change.CurrentEvent
	}
	ok(w, msg)
}

func (s *Server) handleAdjustEvent(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(strings.TrimSpace(r.FormValue("minutes")))
	if err != nil {
		fail(w, api.Invalid("minutes", "must be a whole number"))
		return
	}
	if err := s.controller(r).AdjustEventTime(r.Context(), minutes); err != nil {
		fail(w, err)
		return
	}
	ok(w, "")
}

func (s *Server) handleResetEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.controller(r).ResetEventTime(r.Context()); err != nil {
		fail(w, err)
		return
	}
	ok(w, "")
}

func (s *Server) handleServerControl(w http.ResponseWriter, r *http.Request) {
	var (
		msg string
		err error
	)
	switch chi.URLParam(r, "action") {
	case "restart":
		msg, err = s.controller(r).Restart(r.Context())
	case "stop":
		msg, err = s.controller(r).Stop(r.Context())
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "unknown action"})
		return
	}
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, msg)
}

func (s *Server) handleInitialDonuts(w http.ResponseWriter, r *http.Request) {
	n, err := s.controller(r).SaveInitialDonuts(r.Context(), r.FormValue("donuts"))
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "Initial donuts set to "+strconv.Itoa(n))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	opts := []grid.Option{grid.WithConfirmer(confirmer(r)), grid.WithAudit(s.audit, actor(r))}

	var err error
	if r.FormValue("public") == "1" {
		err = grid.New[api.PublicUser](grid.PublicDirectory{API: s.client(r)}, opts...).Delete(r.Context(), email)
	} else {
		err = grid.New[api.User](grid.GameDirectory{API: s.client(r)}, opts...).Delete(r.Context(), email)
	}
	if err != nil {
		fail(w, err)
		return
	}
	ok(w, "Deleted "+email)
}

// redirectOpener hands the dashboard URL back to the page instead of
// opening it here.
type redirectOpener struct{ url string }

func (o *redirectOpener) Open(url string) error {
	o.url = url
	return nil
}

func (s *Server) handleViewAs(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "no local state store"})
		return
	}
	opener := &redirectOpener{}
	im := &grid.Impersonator{
		Granter:   s.client(r),
		State:     s.state,
		Opener:    opener,
		Dashboard: s.cfg.PublicDashboard,
		Audit:     s.audit,
		Actor:     actor(r),
	}
	if err := im.ViewAs(r.Context(), strings.TrimSpace(r.FormValue("email"))); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": opener.url})
}

func (s *Server) pendingClient(r *http.Request) *towns.Client {
	return towns.New(s.client(r), towns.Staff,
		towns.WithConfirmer(confirmer(r)),
		towns.WithAudit(s.audit, actor(r)),
	)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.pendingClient(r).Approve(r.Context(), id, strings.TrimSpace(r.FormValue("target_email"))); err != nil {
		fail(w, err)
		return
	}
	ok(w, "Town approved")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.pendingClient(r).Reject(r.Context(), id, r.FormValue("reason")); err != nil {
		fail(w, err)
		return
	}
	ok(w, "Town rejected")
}

// errorStatus maps a component error to the status the page sees.
func errorStatus(err error) int {
	var (
		ve *api.ValidationError
		se *api.StatusError
	)
	switch {
	case errors.Is(err, prompt.ErrNotConfirmed):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		return se.Code
	}
	return http.StatusBadGateway
}

func ok(w http.ResponseWriter, msg string) {
	body := map[string]any{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	writeJSON(w, http.StatusOK, body)
}

func fail(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]any{"success": false, "error": api.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
