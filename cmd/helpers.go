package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/config"
	"github.com/springfield-ops/townctl/internal/db"
	"github.com/springfield-ops/townctl/internal/progress"
	"github.com/springfield-ops/townctl/internal/prompt"
	"github.com/springfield-ops/townctl/internal/state"
)

var errNoSession = errors.New("not logged in: run `townctl login` first")

// app bundles what every command needs: configuration, the local state
// database and an unauthenticated backend client.
type app struct {
	cfg   *config.Config
	db    *db.DB
	state *state.Store
	audit *audit.Store
	api   *api.Client
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `townctl init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	opts := []api.Option{api.WithUserAgent(cfg.UserAgent)}
	if cfg.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Timeout))
	}
	ac, err := api.New(cfg.BaseURL, opts...)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &app{
		cfg:   cfg,
		db:    database,
		state: state.NewStore(database),
		audit: audit.NewStore(database),
		api:   ac,
	}, nil
}

func (a *app) Close() error { return a.db.Close() }

// staff returns a client carrying the stored staff session.
func (a *app) staff(ctx context.Context) (*api.Client, error) {
	token, ok := a.state.Lookup(ctx, state.KeySession)
	if !ok {
		return nil, errNoSession
	}
	c := a.api.WithSession(token)
	if nucleus, ok := a.state.Lookup(ctx, state.KeyNucleusToken); ok {
		c = c.WithNucleusToken(nucleus)
	}
	return c, nil
}

// player returns a client carrying the stored self-service login.
func (a *app) player(ctx context.Context) (*api.Client, state.PublicSession, error) {
	sess, ok := a.state.PublicSession(ctx)
	if !ok {
		return nil, sess, errors.New("no player login stored: run `townctl login --public` first")
	}
	return a.api.WithBearer(sess.Token), sess, nil
}

// actor names the operator in audit entries.
func (a *app) actor() string {
	if a.cfg.Username != "" {
		return a.cfg.Username
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "townctl"
}

// confirmer answers yes to everything under --yes and asks otherwise.
func confirmer() prompt.Confirmer {
	if assumeYes {
		return prompt.Always(true)
	}
	return prompt.Terminal{}
}

// reporter picks the progress display for the configured mode.
func (a *app) reporter() func() progress.Reporter {
	switch a.cfg.Progress {
	case config.ProgressOff:
		return func() progress.Reporter { return progress.Nop{} }
	case config.ProgressLine:
		return func() progress.Reporter { return progress.NewCIReporter(os.Stderr) }
	case config.ProgressBar:
		return func() progress.Reporter { return &progress.TerminalReporter{} }
	}
	if outputJSON {
		return func() progress.Reporter { return progress.Nop{} }
	}
	return progress.NewReporter
}

// printJSON writes v to stdout when --json is set and reports whether it
// did.
func printJSON(v any) (bool, error) {
	if !outputJSON {
		return false, nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// result prints a server message, falling back to def.
func result(msg, def string) {
	if msg == "" {
		msg = def
	}
	fmt.Println(msg)
}
