package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/dashboard"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Control the game server process",
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the game server",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		msg, err := ctl.Restart(ctx)
		if err != nil {
			return err
		}
		result(msg, "Server restarting")
		return nil
	}),
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the game server",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		msg, err := ctl.Stop(ctx)
		if err != nil {
			return err
		}
		result(msg, "Server stopping")
		return nil
	}),
}

var serverSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Make the game server write the loaded town to disk now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		c, err := a.staff(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.ForceSave(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Town saved")
		return nil
	},
}

// withPollers runs fn with pollers over the staff session, using the
// configured intervals.
func withPollers(fn func(ctx context.Context, p *dashboard.Pollers) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		c, err := a.staff(cmd.Context())
		if err != nil {
			return err
		}
		p := dashboard.NewPollers(c)
		p.PlayersInterval = a.cfg.Pollers.Players
		p.UptimeInterval = a.cfg.Pollers.Uptime
		return fn(cmd.Context(), p)
	}
}

var serverUptimeCmd = &cobra.Command{
	Use:   "uptime",
	Short: "Show how long the game server has been running",
	RunE: withPollers(func(ctx context.Context, p *dashboard.Pollers) error {
		p.PollUptime(ctx)
		fmt.Println(p.Live().Uptime)
		return nil
	}),
}

var serverPlayersCmd = &cobra.Command{
	Use:   "players",
	Short: "Show the active player count",
	RunE: withPollers(func(ctx context.Context, p *dashboard.Pollers) error {
		p.PollPlayers(ctx)
		fmt.Println(p.Live().Players)
		return nil
	}),
}

var serverWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the player count and uptime as they refresh, until interrupted",
	RunE: withPollers(func(ctx context.Context, p *dashboard.Pollers) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		p.Subscribe(func(l dashboard.Live) {
			if ok, _ := printJSON(l); ok {
				return
			}
			fmt.Printf("%s  players: %-8s uptime: %s\n", l.At.Format("15:04:05"), l.Players, l.Uptime)
		})
		return p.Run(ctx)
	}),
}

func init() {
	serverCmd.AddCommand(serverRestartCmd, serverStopCmd, serverSaveCmd, serverUptimeCmd, serverPlayersCmd, serverWatchCmd)
	rootCmd.AddCommand(serverCmd)
}
