package dashboard

import (
	"context"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/springfield-ops/townctl/internal/api"
)

// Default poll intervals.
const (
	PlayersInterval = 30 * time.Second
	UptimeInterval  = 5 * time.Second
	// UptimeError is shown when the uptime could not be fetched.
	UptimeError = "Error fetching uptime"
)

// Live holds the counters the pollers keep fresh.
type Live struct {
	Players string    `json:"players"`
	Uptime  string    `json:"uptime"`
	At      time.Time `json:"at"`
}

// Pollers refresh the active player count and the server uptime on
// independent timers. A failed poll degrades its value instead of
// reporting an error; the next tick tries again. A tick that fires while
// the previous poll is still running is skipped.
type Pollers struct {
	api             *api.Client
	PlayersInterval time.Duration
	UptimeInterval  time.Duration

	mu        sync.Mutex
	live      Live
	listeners []func(Live)
}

// NewPollers creates Pollers with the default intervals.
func NewPollers(ac *api.Client) *Pollers {
	return &Pollers{
		api:             ac,
		PlayersInterval: PlayersInterval,
		UptimeInterval:  UptimeInterval,
		live:            Live{Players: Unknown, Uptime: Unknown},
	}
}

// Subscribe registers f to be called with every new value. f must not
// block.
func (p *Pollers) Subscribe(f func(Live)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, f)
	p.mu.Unlock()
}

// Live returns the latest values.
func (p *Pollers) Live() Live {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *Pollers) update(f func(*Live)) {
	p.mu.Lock()
	f(&p.live)
	p.live.At = time.Now()
	v := p.live
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		l(v)
	}
}

// PollPlayers fetches the player count once.
func (p *Pollers) PollPlayers(ctx context.Context) {
	n, err := p.api.ActivePlayers(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("dashboard: refreshing active players: %v", err)
		}
		p.update(func(l *Live) { l.Players = Unknown })
		return
	}
	p.update(func(l *Live) { l.Players = strconv.Itoa(n) })
}

// PollUptime fetches the uptime once.
func (p *Pollers) PollUptime(ctx context.Context) {
	d, err := p.api.Uptime(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("dashboard: refreshing uptime: %v", err)
		}
		p.update(func(l *Live) { l.Uptime = UptimeError })
		return
	}
	p.update(func(l *Live) { l.Uptime = api.FormatUptime(d) })
}

// Run polls both counters immediately and then on their intervals until
// ctx is cancelled.
func (p *Pollers) Run(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { every(ctx, p.PlayersInterval, p.PollPlayers); return nil })
	g.Go(func() error { every(ctx, p.UptimeInterval, p.PollUptime); return nil })
	return g.Wait()
}

// every runs poll now and then on each tick. Each poll is bounded by the
// interval, and time.Ticker drops ticks that arrive while a poll runs.
func every(ctx context.Context, interval time.Duration, poll func(context.Context)) {
	run := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		poll(pctx)
	}

	run()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
