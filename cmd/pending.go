package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/towns"
)

var (
	pendingTarget string
	pendingReason string
	submitEmail   string
	submitName    string
	submitDesc    string
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Review publicly submitted towns",
}

func pendingClient(cmd *cobra.Command) (*app, *towns.Client, error) {
	a, err := openApp()
	if err != nil {
		return nil, nil, err
	}
	c, err := a.staff(cmd.Context())
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, towns.New(c, towns.Staff,
		towns.WithConfirmer(confirmer()),
		towns.WithAudit(a.audit, a.actor()),
	), nil
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions waiting for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, tc, err := pendingClient(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := tc.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if ok, err := printJSON(list); ok {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No towns are waiting for review")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tTOWN\tSIZE\tSUBMITTED")
		for _, t := range list {
			when := ""
			if ts := t.Submitted(); !ts.IsZero() {
				when = ts.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Email, t.TownName, towns.FormatSize(t.FileSize), when)
		}
		return w.Flush()
	},
}

var pendingApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a submission, installing it for the submitter or --target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, tc, err := pendingClient(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := tc.Approve(cmd.Context(), args[0], pendingTarget); err != nil {
			return err
		}
		fmt.Println("Town approved")
		return nil
	},
}

var pendingRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, tc, err := pendingClient(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := tc.Reject(cmd.Context(), args[0], pendingReason); err != nil {
			return err
		}
		fmt.Println("Town rejected")
		return nil
	},
}

var pendingSubmitCmd = &cobra.Command{
	Use:   "submit <file.pb>",
	Short: "Submit a town for review (no login needed)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tc := towns.New(a.api, towns.PublicSubmission,
			towns.WithProgress(a.reporter()),
			towns.WithAudit(a.audit, a.actor()),
		)
		id, err := tc.Submit(cmd.Context(), towns.Submission{
			Email:       submitEmail,
			TownName:    submitName,
			Description: submitDesc,
			Path:        args[0],
		})
		if err != nil {
			return err
		}
		fmt.Printf("Submitted for review (id %s)\n", id)
		return nil
	},
}

func init() {
	pendingApproveCmd.Flags().StringVar(&pendingTarget, "target", "", "install for this email instead of the submitter")
	pendingRejectCmd.Flags().StringVar(&pendingReason, "reason", "", "reason shown to the submitter")
	pendingSubmitCmd.Flags().StringVar(&submitEmail, "email", "", "your email (required)")
	pendingSubmitCmd.Flags().StringVar(&submitName, "name", "", "town name (default: <name>'s Town)")
	pendingSubmitCmd.Flags().StringVar(&submitDesc, "description", "", "description, Markdown allowed")
	_ = pendingSubmitCmd.MarkFlagRequired("email")

	pendingCmd.AddCommand(pendingListCmd, pendingApproveCmd, pendingRejectCmd, pendingSubmitCmd)
	rootCmd.AddCommand(pendingCmd)
}
