package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
)

var (
	historyAction  string
	historyTarget  string
	historyOutcome string
	historySince   time.Duration
	historyLimit   int
	historyPrune   time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the local audit trail of actions taken against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if historyPrune > 0 {
			n, err := a.audit.DeleteBefore(ctx, time.Now().Add(-historyPrune))
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries older than %s\n", n, historyPrune)
			return nil
		}

		filter := audit.QueryFilter{
			Action:  audit.Action(historyAction),
			Target:  historyTarget,
			Outcome: audit.Outcome(historyOutcome),
			Limit:   historyLimit,
		}
		switch filter.Outcome {
		case "", audit.OutcomeOK, audit.OutcomeFailed, audit.OutcomeCancelled:
		default:
			return api.Invalid("outcome", "must be ok, failed or cancelled")
		}
		if historySince > 0 {
			since := time.Now().Add(-historySince)
			filter.Since = &since
		}

		entries, err := a.audit.Query(ctx, filter)
		if err != nil {
			return err
		}
		if ok, err := printJSON(entries); ok {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTOR\tSURFACE\tACTION\tTARGET\tOUTCOME\tDETAIL")
		for _, e := range entries {
			detail := e.Summary
			if e.Error != "" {
				detail = e.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Actor, e.Surface, e.Action, orNone(e.Target), e.Outcome, detail)
		}
		return w.Flush()
	},
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyAction, "action", "", "only this action, e.g. town_import")
	f.StringVar(&historyTarget, "target", "", "only entries for this target")
	f.StringVar(&historyOutcome, "outcome", "", "only ok, failed or cancelled")
	f.DurationVar(&historySince, "since", 0, "only entries newer than this, e.g. 24h")
	f.IntVar(&historyLimit, "limit", 50, "maximum entries")
	f.DurationVar(&historyPrune, "prune", 0, "delete entries older than this instead of listing")
	rootCmd.AddCommand(historyCmd)
}
