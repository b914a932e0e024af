package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/springfield-ops/townctl/internal/api"
)

// Routes classifies request paths with doublestar patterns. Paths matching
// neither list are pages.
type Routes struct {
	Public []string
	API    []string
}

// DefaultRoutes matches the panel's layout.
var DefaultRoutes = Routes{
	Public: []string{LoginPath, "/logout", "/healthz", "/static/**", "/public/**"},
	API:    []string{"/api/**", "/panel/api/**", "/ws/**"},
}

// Kind returns the kind of route path is.
func (r Routes) Kind(path string) RouteKind {
	if matchAny(r.Public, path) {
		return RoutePublic
	}
	if matchAny(r.API, path) {
		return RouteAPI
	}
	return RoutePage
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// FromContext returns the session info the middleware attached, if the
// request was validated.
func FromContext(ctx context.Context) (*api.SessionInfo, bool) {
	info, ok := ctx.Value(ctxKey{}).(*api.SessionInfo)
	return info, ok && info != nil
}

// TokenFromRequest reads the staff session cookie.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(api.SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware enforces the guard on every request routed through it.
// Denied page requests are redirected to the login page; denied API
// requests get a JSON 401, or 503 when the session could not be checked.
func (g *Guard) Middleware(routes Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			kind := routes.Kind(r.URL.Path)
			d, err := g.Check(r.Context(), TokenFromRequest(r), kind)

			switch {
			case d.Allowed():
				if d.Info != nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, d.Info))
				}
				next.ServeHTTP(w, r)
			case kind == RouteAPI && err != nil:
				deny(w, http.StatusServiceUnavailable, api.Message(err))
			case kind == RouteAPI:
				deny(w, http.StatusUnauthorized, "Not authenticated")
			default:
				http.Redirect(w, r, loginURL(r), http.StatusFound)
			}
		})
	}
}

func loginURL(r *http.Request) string {
	if r.URL.Path == "/" || strings.HasPrefix(r.URL.Path, LoginPath) {
		return LoginPath
	}
	return LoginPath + "?next=" + r.URL.EscapedPath()
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
