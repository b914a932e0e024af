package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/dashboard"
)

// controller builds a dashboard controller over the staff session.
func (a *app) controller(ctx context.Context) (*dashboard.Controller, error) {
	c, err := a.staff(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.New(c,
		dashboard.WithConfirmer(confirmer()),
		dashboard.WithAudit(a.audit, a.actor()),
		dashboard.WithReload(showEvent(c)),
	), nil
}

// showEvent re-reads the dashboard after a change and reports the event
// the server now has current.
func showEvent(c *api.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		st, err := c.EventStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Current event: %s (%d)\n", st.EventName, st.EventTime)
		return nil
	}
}

// withController opens the app and runs fn with a staff controller.
func withController(fn func(ctx context.Context, a *app, ctl *dashboard.Controller) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctl, err := a.controller(cmd.Context())
		if err != nil {
			return err
		}
		return fn(cmd.Context(), a, ctl)
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the server dashboard",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		snap, err := ctl.Load(ctx)
		if err != nil {
			return err
		}
		if ok, err := printJSON(snap); ok {
			return err
		}

		d := snap.Data
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Server\t%s:%s\n", d.ServerIP, d.GamePort)
		fmt.Fprintf(w, "DLC directory\t%s\n", d.DLCDirectory)
		fmt.Fprintf(w, "Uptime\t%s\n", d.Uptime)
		if n, ok := d.Players(); ok {
			fmt.Fprintf(w, "Active players\t%d\n", n)
		} else {
			fmt.Fprintf(w, "Active players\t%s\n", dashboard.Unknown)
		}
		if snap.UsersErr != nil {
			fmt.Fprintf(w, "Users\tunavailable (%s)\n", api.Message(snap.UsersErr))
		} else {
			fmt.Fprintf(w, "Users\t%d\n", len(snap.Users))
		}
		fmt.Fprintf(w, "Current event\t%s\n", d.CurrentEvent)
		fmt.Fprintf(w, "Backups\t%s every %sh %ss\n", orNone(d.BackupDirectory.String()), d.BackupIntervalHours, d.BackupIntervalSeconds)
		fmt.Fprintf(w, "API\t%s\n", yesNo(d.APIEnabled))
		fmt.Fprintf(w, "Legacy land mode\t%s\n", yesNo(d.UseLegacyMode))
		fmt.Fprintf(w, "Anonymous users disabled\t%s\n", yesNo(d.DisableAnonymousUsers))
		if err := w.Flush(); err != nil {
			return err
		}
		if len(snap.Fixed) > 0 {
			fmt.Fprintf(os.Stderr, "Note: server left template values in %v; defaults shown\n", snap.Fixed)
		}
		return nil
	}),
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change the game server's settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the editable settings",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		cfg, err := ctl.Config(ctx)
		if err != nil {
			return err
		}
		if ok, err := printJSON(cfg); ok {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "backup.directory\t%s\n", cfg.Backup.BackupDirectory)
		fmt.Fprintf(w, "backup.hours\t%d\n", cfg.Backup.BackupIntervalHours)
		fmt.Fprintf(w, "backup.seconds\t%d\n", cfg.Backup.BackupIntervalSeconds)
		fmt.Fprintf(w, "api.enabled\t%t\n", cfg.API.APIEnabled)
		fmt.Fprintf(w, "api.key\t%s\n", cfg.API.APIKey)
		fmt.Fprintf(w, "api.team\t%s\n", cfg.API.TeamName)
		fmt.Fprintf(w, "api.require_code\t%t\n", cfg.API.RequireCode)
		fmt.Fprintf(w, "land.legacy\t%t\n", cfg.Land.UseLegacyMode)
		fmt.Fprintf(w, "security.disable_anonymous\t%t\n", cfg.Security.DisableAnonymousUsers)
		return w.Flush()
	}),
}

var settingsBackup struct {
	dir            string
	hours, seconds int
}

var settingsBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Change the backup directory and interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			cfg, err := ctl.Config(ctx)
			if err != nil {
				return err
			}
			s := cfg.Backup
			f := cmd.Flags()
			if f.Changed("dir") {
				s.BackupDirectory = settingsBackup.dir
			}
			if f.Changed("hours") {
				s.BackupIntervalHours = settingsBackup.hours
			}
			if f.Changed("seconds") {
				s.BackupIntervalSeconds = settingsBackup.seconds
			}
			if err := ctl.SaveBackup(ctx, s); err != nil {
				return err
			}
			fmt.Println("Backup settings saved")
			return nil
		})(cmd, args)
	},
}

var settingsAPI struct {
	enabled, requireCode bool
	key, team            string
}

var settingsAPICmd = &cobra.Command{
	Use:   "api",
	Short: "Change the public API settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			cfg, err := ctl.Config(ctx)
			if err != nil {
				return err
			}
			s := cfg.API
			f := cmd.Flags()
			if f.Changed("enabled") {
				s.APIEnabled = settingsAPI.enabled
			}
			if f.Changed("key") {
				s.APIKey = settingsAPI.key
			}
			if f.Changed("team") {
				s.TeamName = settingsAPI.team
			}
			if f.Changed("require-code") {
				s.RequireCode = settingsAPI.requireCode
			}
			if err := ctl.SaveAPI(ctx, s); err != nil {
				return err
			}
			fmt.Println("API settings saved")
			return nil
		})(cmd, args)
	},
}

var settingsLandCmd = &cobra.Command{
	Use:   "land <legacy:true|false>",
	Short: "Switch legacy land mode on or off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		legacy, err := strconv.ParseBool(args[0])
		if err != nil {
			return api.Invalid("legacy", "must be true or false")
		}
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			if err := ctl.SaveLand(ctx, api.LandSettings{UseLegacyMode: legacy}); err != nil {
				return err
			}
			fmt.Println("Land settings saved")
			return nil
		})(cmd, args)
	},
}

var settingsSecurityCmd = &cobra.Command{
	Use:   "security <disable-anonymous:true|false>",
	Short: "Allow or refuse anonymous players",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		off, err := strconv.ParseBool(args[0])
		if err != nil {
			return api.Invalid("disable-anonymous", "must be true or false")
		}
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			if err := ctl.SaveSecurity(ctx, api.SecuritySettings{DisableAnonymousUsers: off}); err != nil {
				return err
			}
			fmt.Println("Security settings saved")
			return nil
		})(cmd, args)
	},
}

var settingsDonutsCmd = &cobra.Command{
	Use:   "donuts <n>",
	Short: "Set the donuts new accounts start with (clamped to 0-100000)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			n, err := ctl.SaveInitialDonuts(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("New accounts start with %d donuts\n", n)
			return nil
		})(cmd, args)
	},
}

var settingsAddress struct {
	ip   string
	port int
}

var settingsAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Change the advertised server IP and game port",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		if settingsAddress.ip == "" && settingsAddress.port == 0 {
			return api.Invalid("address", "give --ip, --port or both")
		}
		if err := ctl.SaveServerAddress(ctx, settingsAddress.ip, settingsAddress.port); err != nil {
			return err
		}
		fmt.Println("Server address saved")
		return nil
	}),
}

var settingsDLCCmd = &cobra.Command{
	Use:   "dlc <directory>",
	Short: "Change the directory DLC content is served from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			if err := ctl.SaveDLCDirectory(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("DLC directory saved")
			return nil
		})(cmd, args)
	},
}

func init() {
	f := settingsBackupCmd.Flags()
	f.StringVar(&settingsBackup.dir, "dir", "", "backup directory on the server")
	f.IntVar(&settingsBackup.hours, "hours", 0, "interval hours")
	f.IntVar(&settingsBackup.seconds, "seconds", 0, "interval seconds")

	f = settingsAPICmd.Flags()
	f.BoolVar(&settingsAPI.enabled, "enabled", false, "enable the public API")
	f.StringVar(&settingsAPI.key, "key", "", "API key")
	f.StringVar(&settingsAPI.team, "team", "", "team name")
	f.BoolVar(&settingsAPI.requireCode, "require-code", false, "require an access code")

	f = settingsAddressCmd.Flags()
	f.StringVar(&settingsAddress.ip, "ip", "", "advertised server IP")
	f.IntVar(&settingsAddress.port, "port", 0, "game port")

	settingsCmd.AddCommand(settingsShowCmd, settingsBackupCmd, settingsAPICmd, settingsLandCmd,
		settingsSecurityCmd, settingsDonutsCmd, settingsAddressCmd, settingsDLCCmd)
	rootCmd.AddCommand(dashboardCmd, settingsCmd)
}
