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

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Show and change the current in-game event",
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the event schedule, marking the current event",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		snap, err := ctl.Load(ctx)
		if err != nil {
			return err
		}
		if ok, err := printJSON(snap.Schedule); ok {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, " \tTIME\tEVENT")
		for _, e := range snap.Schedule {
			mark := " "
			if e.Current {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", mark, e.Time, e.Name)
		}
		return w.Flush()
	}),
}

var eventSetCmd = &cobra.Command{
	Use:   "set <event-time>",
	Short: "Make the event keyed by event-time current (0 is normal play)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return api.Invalid("event_time", "must be a whole number")
		}
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			name := ""
			if snap, err := ctl.Load(ctx); err == nil {
				for _, e := range snap.Schedule {
					if e.Time == t {
						name = e.Name
					}
				}
			}
			change, err := ctl.SetEvent(ctx, t, name)
			if err != nil {
				return err
			}
			result(change.CurrentEvent, "Event changed")
			return nil
		})(cmd, args)
	},
}

var eventAdjustCmd = &cobra.Command{
	Use:   "adjust <minutes>",
	Short: "Shift the event clock by minutes (negative moves it back)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return api.Invalid("minutes", "must be a whole number")
		}
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			if err := ctl.AdjustEventTime(ctx, minutes); err != nil {
				return err
			}
			fmt.Printf("Event time adjusted by %+d minutes\n", minutes)
			return nil
		})(cmd, args)
	},
}

var eventResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Put the event clock back to the current time",
	RunE: withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
		if err := ctl.ResetEventTime(ctx); err != nil {
			return err
		}
		fmt.Println("Event time reset")
		return nil
	}),
}

var eventStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which event is current",
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
		st, err := c.EventStatus(cmd.Context())
		if err != nil {
			return err
		}
		if ok, err := printJSON(st); ok {
			return err
		}
		if !st.Active {
			fmt.Println(dashboard.DefaultEvent)
			return nil
		}
		fmt.Printf("%s (event time %d)\n", orNone(st.EventName), st.EventTime)
		return nil
	},
}

func init() {
	eventCmd.AddCommand(eventListCmd, eventSetCmd, eventAdjustCmd, eventResetCmd, eventStatusCmd)
	rootCmd.AddCommand(eventCmd)
}
