package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/guard"
	"github.com/springfield-ops/townctl/internal/panel"
)

var panelPort int

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Serve the staff web panel",
	Long: `Starts the staff web panel: login, dashboard with live counters, user
grids and the moderation queue. Each browser signs in with its own staff
session. When a CLI login is stored, the live counters poll with it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if cmd.Flags().Changed("port") {
			a.cfg.Panel.Port = panelPort
		}

		g := guard.New(a.api)
		g.FailOpen = a.cfg.Guard.FailOpen

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var pollers *dashboard.Pollers
		if c, err := a.staff(ctx); err == nil {
			pollers = dashboard.NewPollers(c)
			pollers.PlayersInterval = a.cfg.Pollers.Players
			pollers.UptimeInterval = a.cfg.Pollers.Uptime
			go pollers.Run(ctx)
		} else {
			fmt.Fprintln(os.Stderr, "No CLI login stored; live counters are off")
		}

		srv := panel.New(panel.Config{
			Addr:            a.cfg.PanelAddr(),
			CORSOrigins:     a.cfg.Panel.CORSOrigins,
			PublicDashboard: a.cfg.PublicDashboardURL(),
		}, a.api, g, a.state, a.audit, pollers)

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down panel...")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()

		fmt.Fprintf(os.Stderr, "townctl panel v%s on http://%s\n", Version, a.cfg.PanelAddr())
		fmt.Fprintf(os.Stderr, "  Game server: %s\n", a.cfg.BaseURL)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	panelCmd.Flags().IntVarP(&panelPort, "port", "p", 0, "listen port (overrides config)")
	rootCmd.AddCommand(panelCmd)
}
