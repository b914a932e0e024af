// Package dashboard drives the operator dashboard: the initial load, the
// live counters, event control, server settings and server control.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/prompt"
)

// Controller performs dashboard actions against one backend.
type Controller struct {
	api     *api.Client
	confirm prompt.Confirmer
	audit   *audit.Store
	actor   string
	// reload runs after every successful event or settings change so the
	// caller can show the server's new state. There is no optimistic
	// update. Server control does not reload.
	reload func(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfirmer sets how event and server changes are confirmed.
func WithConfirmer(c prompt.Confirmer) Option {
	return func(ctl *Controller) { ctl.confirm = c }
}

// WithAudit records changes in store under actor.
func WithAudit(store *audit.Store, actor string) Option {
	return func(ctl *Controller) {
		ctl.audit = store
		ctl.actor = actor
	}
}

// WithReload sets the callback run after each successful change.
func WithReload(f func(ctx context.Context) error) Option {
	return func(ctl *Controller) { ctl.reload = f }
}

// New creates a Controller.
func New(ac *api.Client, opts ...Option) *Controller {
	c := &Controller{api: ac}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot is everything the dashboard shows on first load.
type Snapshot struct {
	Data     *api.DashboardData
	Schedule []api.EventEntry
	Users    []api.User
	// UsersErr is set when the user list failed to load; the rest of the
	// dashboard is still usable.
	UsersErr error
	// Fixed lists the fields whose template tokens were replaced.
	Fixed []string
}

// Load fetches the dashboard data and the user list concurrently.
func (c *Controller) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d, err := c.api.DashboardData(gctx)
		if err != nil {
			return fmt.Errorf("loading dashboard data: %w", err)
		}
		snap.Data = d
		return nil
	})
	g.Go(func() error {
		users, err := c.api.ListUsers(gctx)
		if err != nil {
			snap.UsersErr = err
			return nil
		}
		snap.Users = users
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.Fixed = FixPlaceholders(snap.Data)
	for _, f := range snap.Fixed {
		log.Printf("dashboard: server did not substitute %s", f)
	}
	snap.Schedule = snap.Data.Schedule()
	return snap, nil
}

var placeholder = regexp.MustCompile(`%[A-Z][A-Z0-9_]*%`)

// Defaults used when the server leaves a template token in a field.
const (
	DefaultServerIP     = "127.0.0.1"
	DefaultGamePort     = "9090"
	DefaultDLCDirectory = "dlc"
	DefaultEvent        = "Normal Play"
	Unknown             = "Unknown"
)

// FixPlaceholders replaces unsubstituted %TOKEN% values in d with defaults
// and returns the names of the fields it changed. Event names that are
// still tokens are dropped from the schedule.
func FixPlaceholders(d *api.DashboardData) []string {
	if d == nil {
		return nil
	}
	var fixed []string
	fix := func(name string, v *api.Text, def string) {
		if placeholder.MatchString(string(*v)) {
			*v = api.Text(def)
			fixed = append(fixed, name)
		}
	}
	fix("server_ip", &d.ServerIP, DefaultServerIP)
	fix("game_port", &d.GamePort, DefaultGamePort)
	fix("dlc_directory", &d.DLCDirectory, DefaultDLCDirectory)
	fix("current_event", &d.CurrentEvent, DefaultEvent)
	fix("uptime", &d.Uptime, Unknown)
	fix("backup_directory", &d.BackupDirectory, "")
	fix("backup_interval_hours", &d.BackupIntervalHours, "")
	fix("backup_interval_seconds", &d.BackupIntervalSeconds, "")
	fix("api_key", &d.APIKey, "")
	fix("team_name", &d.TeamName, "")

	for k, name := range d.Events {
		if placeholder.MatchString(string(name)) || placeholder.MatchString(k) {
			delete(d.Events, k)
			fixed = append(fixed, "events")
		}
	}
	return fixed
}

func (c *Controller) record(ctx context.Context, action audit.Action, target, summary string, err error) {
	c.audit.Record(ctx, audit.Entry{
		Actor:   c.actor,
		Surface: "dashboard",
		Action:  action,
		Target:  target,
		Summary: summary,
	}, err, prompt.ErrNotConfirmed)
}

// confirmed asks q and runs do.
func (c *Controller) confirmed(q prompt.Question, do func() error) error {
	if err := prompt.Require(c.confirm, q); err != nil {
		return err
	}
	return do()
}

// afterChange runs the reload callback once err shows the change applied.
// A reload failure is returned but the change is not undone.
func (c *Controller) afterChange(ctx context.Context, err error) error {
	if err != nil || c.reload == nil {
		return err
	}
	if err := c.reload(ctx); err != nil {
		return fmt.Errorf("change applied, but reloading failed: %w", err)
	}
	return nil
}
