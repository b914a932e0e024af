// Package guard decides whether a request may proceed on the staff
// session it carries.
//
// A missing token always sends the caller to the login page without asking
// the server. Page routes are let through on the token's presence alone,
// since the backend protects its own data. API routes are validated with
// the server before they run.
package guard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/springfield-ops/townctl/internal/api"
)

// LoginPath is where unauthenticated callers are sent.
const LoginPath = "/login"

// State is the session state of a caller.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// RouteKind selects how much checking a route needs.
type RouteKind int

const (
	// RoutePage is an HTML page: token presence is enough.
	RoutePage RouteKind = iota
	// RouteAPI is a data route: the token is validated with the server.
	RouteAPI
	// RoutePublic needs no session at all.
	RoutePublic
)

// Decision is the outcome of a check.
type Decision struct {
	State State
	// Redirect is set when the caller should be sent elsewhere.
	Redirect string
	// Validated is true when the server was asked about the token.
	Validated bool
	// Degraded is true when the server could not be reached and the
	// session was accepted anyway.
	Degraded bool
	Info     *api.SessionInfo
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.State == Authenticated }

// Validator asks the server about a staff session.
type Validator interface {
	ValidateSession(ctx context.Context, token string) (*api.SessionInfo, error)
}

// ErrUnavailable is reported in Decision-returning checks that had to fail
// closed because the server could not be reached.
var ErrUnavailable = errors.New("session could not be validated")

// PageCheckTimeout bounds a background page-load validation.
const PageCheckTimeout = 10 * time.Second

// maxKnown caps the remembered sessions; the cache is dropped when full.
const maxKnown = 256

// Guard applies the session rules.
type Guard struct {
	validator Validator
	// FailOpen accepts a session whose page-load validation failed for
	// network reasons. On by default: a flaky link should not lock the
	// operator out, and the backend still rejects a dead token.
	FailOpen bool

	mu    sync.Mutex
	known map[string]known
	wg    sync.WaitGroup
}

// known is the last thing the server said about a token.
type known struct {
	info     *api.SessionInfo
	degraded bool
}

// New creates a Guard that validates with v.
func New(v Validator) *Guard {
	return &Guard{validator: v, FailOpen: true, known: make(map[string]known)}
}

// Remember records info for token, e.g. right after a login.
func (g *Guard) Remember(token string, info *api.SessionInfo) {
	g.note(token, known{info: info})
}

func (g *Guard) note(token string, k known) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.known == nil || len(g.known) >= maxKnown {
		g.known = make(map[string]known)
	}
	g.known[token] = k
}

func (g *Guard) forget(token string) {
	g.mu.Lock()
	delete(g.known, token)
	g.mu.Unlock()
}

func (g *Guard) lookup(token string) known {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.known[token]
}

// Check decides on token for a route of the given kind.
func (g *Guard) Check(ctx context.Context, token string, kind RouteKind) (Decision, error) {
	if kind == RoutePublic {
		return Decision{State: Authenticated}, nil
	}
	if token == "" {
		return Decision{State: Unauthenticated, Redirect: LoginPath}, nil
	}
	if kind == RoutePage {
		return Decision{State: Authenticated}, nil
	}

	info, err := g.validator.ValidateSession(ctx, token)
	if err != nil {
		return Decision{State: Unauthenticated, Validated: true}, errors.Join(ErrUnavailable, err)
	}
	if !info.Valid {
		g.forget(token)
		return Decision{State: Unauthenticated, Redirect: LoginPath, Validated: true, Info: info}, nil
	}
	g.note(token, known{info: info})
	return Decision{State: Authenticated, Validated: true, Info: info}, nil
}

// Page admits a page request on the token's presence alone and validates
// the token in the background with PageLoad. The decision carries what the
// server last said about the token, if anything. rejected runs once the
// server refuses the token; it is not called while the server is
// unreachable and FailOpen is set.
func (g *Guard) Page(ctx context.Context, token string, rejected func(ctx context.Context, token string)) Decision {
	d, _ := g.Check(ctx, token, RoutePage)
	if !d.Allowed() {
		return d
	}
	k := g.lookup(token)
	d.Info, d.Degraded = k.info, k.degraded

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PageCheckTimeout)
		defer cancel()
		vd, err := g.PageLoad(bctx, token)
		if err != nil {
			log.Printf("guard: page-load validation: %v", err)
		}
		if !vd.Allowed() && rejected != nil {
			rejected(bctx, token)
		}
	}()
	return d
}

// Wait blocks until background page-load validations have finished.
func (g *Guard) Wait() { g.wg.Wait() }

// PageLoad validates token when a page is first shown; Page runs it in the
// background. A rejected token sends the caller to the login page. When the server cannot be reached the
// session is accepted if FailOpen is set.
func (g *Guard) PageLoad(ctx context.Context, token string) (Decision, error) {
	d, err := g.Check(ctx, token, RouteAPI)
	if err == nil {
		return d, nil
	}
	if g.FailOpen && errors.Is(err, ErrUnavailable) {
		log.Printf("guard: session validation failed, continuing: %v", err)
		k := g.lookup(token)
		g.note(token, known{info: k.info, degraded: true})
		return Decision{State: Authenticated, Validated: true, Degraded: true, Info: k.info}, nil
	}
	d.Redirect = LoginPath
	return d, err
}

// Sessions is the local store holding the staff token.
type Sessions interface {
	ClearStaffSession(ctx context.Context) error
}

// Logouter ends a session on the server.
type Logouter interface {
	Logout(ctx context.Context) error
}

// Logout ends the session on the server and clears the local token. The
// token is cleared even when the server call fails; that error is returned
// for display only. The caller is always sent to the login page.
func Logout(ctx context.Context, server Logouter, local Sessions) (string, error) {
	var serverErr error
	if server != nil {
		serverErr = server.Logout(ctx)
	}
	if err := local.ClearStaffSession(context.WithoutCancel(ctx)); err != nil {
		return LoginPath, errors.Join(err, serverErr)
	}
	return LoginPath, serverErr
}
