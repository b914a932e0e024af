// Package grid is a search-and-edit table over a user directory. The same
// Grid drives the game directory and the public directory.
package grid

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/prompt"
)

// ErrSuperseded is returned by a search whose result was discarded because
// a newer search started while it was in flight.
var ErrSuperseded = errors.New("search superseded by a newer one")

// View is what the grid currently shows.
type View[T Record] struct {
	Rows    []T
	Message string
	// Query is the search that produced Rows; empty for a full listing.
	Field, Term string
}

// Grid holds the rows of the latest completed search.
type Grid[T Record] struct {
	src     Source[T]
	confirm prompt.Confirmer
	audit   *audit.Store
	actor   string

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	view   View[T]
}

// Option configures a Grid.
type Option func(*options)

type options struct {
	confirm prompt.Confirmer
	audit   *audit.Store
	actor   string
}

// WithConfirmer sets how deletions are confirmed. Without one every
// deletion is refused.
func WithConfirmer(c prompt.Confirmer) Option {
	return func(o *options) { o.confirm = c }
}

// WithAudit records edits and deletions in store under actor.
func WithAudit(store *audit.Store, actor string) Option {
	return func(o *options) {
		o.audit = store
		o.actor = actor
	}
}

// New creates a Grid over src.
func New[T Record](src Source[T], opts ...Option) *Grid[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Grid[T]{src: src, confirm: o.confirm, audit: o.audit, actor: o.actor}
}

// View returns a copy of what the grid shows.
func (g *Grid[T]) View() View[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.view
	v.Rows = slices.Clone(g.view.Rows)
	return v
}

// begin starts a new request generation, cancelling the one in flight.
func (g *Grid[T]) begin(ctx context.Context) (context.Context, uint64, context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	g.gen++
	g.cancel = cancel
	return ctx, g.gen, cancel
}

// finish publishes rows if gen is still the latest generation.
func (g *Grid[T]) finish(gen uint64, v View[T]) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return false
	}
	g.cancel = nil
	g.view = v
	return true
}

// Search queries the directory. An empty term is rejected without a
// request. Only the most recently started search may replace the rows:
// starting a search cancels the previous one, and a result that arrives
// after a newer search began is dropped with ErrSuperseded.
func (g *Grid[T]) Search(ctx context.Context, field, term string) ([]T, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		g.setMessage("Please enter a search term")
		return nil, api.Invalid("term", "please enter a search term")
	}
	if field == "" {
		field = g.src.Fields()[0]
	}

	ctx, gen, cancel := g.begin(ctx)
	defer cancel()
	rows, err := g.src.Search(ctx, field, term)
	return g.complete(gen, rows, err, View[T]{Field: field, Term: term})
}

// All lists the whole directory, under the same supersession rules as
// Search.
func (g *Grid[T]) All(ctx context.Context) ([]T, error) {
	ctx, gen, cancel := g.begin(ctx)
	defer cancel()
	rows, err := g.src.List(ctx)
	return g.complete(gen, rows, err, View[T]{})
}

func (g *Grid[T]) complete(gen uint64, rows []T, err error, v View[T]) ([]T, error) {
	if err != nil {
		if g.stale(gen) {
			return nil, ErrSuperseded
		}
		g.setMessage(api.Message(err))
		return nil, err
	}
	v.Rows = slices.Clone(rows)
	if len(rows) == 0 {
		v.Message = "No users found"
	} else {
		v.Message = fmt.Sprintf("Found %d %s", len(rows), g.src.Name())
	}
	if !g.finish(gen, v) {
		return nil, ErrSuperseded
	}
	return rows, nil
}

func (g *Grid[T]) stale(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return gen != g.gen
}

func (g *Grid[T]) setMessage(msg string) {
	g.mu.Lock()
	g.view.Message = msg
	g.mu.Unlock()
}

// Edit fetches the full record for email.
func (g *Grid[T]) Edit(ctx context.Context, email string) (*T, error) {
	return g.src.Get(ctx, email)
}

// Save writes back rec, resending every field, and refreshes its row.
func (g *Grid[T]) Save(ctx context.Context, rec T) error {
	err := g.src.Update(ctx, rec)
	g.record(ctx, audit.ActionUserUpdate, rec.Key(), "update "+g.src.Name()+" record", err)
	if err != nil {
		return err
	}

	g.mu.Lock()
	rows := slices.Clone(g.view.Rows)
	for i, r := range rows {
		if r.Key() == rec.Key() {
			rows[i] = rec
		}
	}
	g.view.Rows = rows
	g.view.Message = "User updated successfully"
	g.mu.Unlock()
	return nil
}

// Delete removes email from the directory after confirmation. Nothing is
// sent when the confirmation is declined.
func (g *Grid[T]) Delete(ctx context.Context, email string) error {
	err := g.delete(ctx, email)
	g.record(ctx, audit.ActionUserDelete, email, "delete from "+g.src.Name(), err)
	return err
}

func (g *Grid[T]) delete(ctx context.Context, email string) error {
	if email == "" {
		return api.Invalid("email", "is required")
	}
	q := prompt.Question{Label: fmt.Sprintf("Delete user %s? This cannot be undone.", email)}
	if err := prompt.Require(g.confirm, q); err != nil {
		return err
	}
	if err := g.src.Delete(ctx, email); err != nil {
		return err
	}

	g.mu.Lock()
	g.view.Rows = slices.DeleteFunc(slices.Clone(g.view.Rows), func(r T) bool { return r.Key() == email })
	g.view.Message = "User deleted successfully"
	g.mu.Unlock()
	return nil
}

func (g *Grid[T]) record(ctx context.Context, action audit.Action, target, summary string, err error) {
	g.audit.Record(ctx, audit.Entry{
		Actor:   g.actor,
		Surface: g.src.Name(),
		Action:  action,
		Target:  target,
		Summary: summary,
	}, err, prompt.ErrNotConfirmed)
}
