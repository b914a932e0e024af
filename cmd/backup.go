package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/backup"
	"github.com/springfield-ops/townctl/internal/config"
	"github.com/springfield-ops/townctl/internal/towns"
)

var (
	backupAll         bool
	backupConcurrency int
)

var backupCmd = &cobra.Command{
	Use:   "backup [email...]",
	Short: "Export towns to S3-compatible storage",
	Long: `Exports the towns of the given users, or of every user with --all, and
uploads them to the configured bucket as <prefix>/<date>/<email>.pb. One
failed town does not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if a.cfg.Backup.Bucket == "" {
			return api.Invalid("backup.bucket", "is not configured")
		}
		c, err := a.staff(ctx)
		if err != nil {
			return err
		}

		emails := args
		if backupAll {
			if emails, err = backup.AllEmails(ctx, c); err != nil {
				return err
			}
		}
		if len(emails) == 0 {
			return api.Invalid("email", "give one or more emails, or --all")
		}

		client, err := backup.NewS3Client(ctx, a.cfg.Backup)
		if err != nil {
			return err
		}
		bar := progressbar.NewOptions(len(emails),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Backing up towns"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		if outputJSON || a.cfg.Progress == config.ProgressOff {
			bar = progressbar.DefaultSilent(int64(len(emails)))
		}
		arch, err := backup.New(c, client, a.cfg.Backup.Bucket, a.cfg.Backup.Prefix,
			backup.WithConcurrency(backupConcurrency),
			backup.WithAudit(a.audit, a.actor()),
			backup.WithNotify(func(backup.Result) { _ = bar.Add(1) }),
		)
		if err != nil {
			return err
		}

		results, runErr := arch.Run(ctx, emails)
		_ = bar.Finish()

		type row struct {
			Email string `json:"email"`
			Key   string `json:"key"`
			Size  int64  `json:"size"`
			Error string `json:"error,omitempty"`
		}
		rows := make([]row, len(results))
		for i, r := range results {
			rows[i] = row{Email: r.Email, Key: r.Key, Size: r.Size}
			if r.Err != nil {
				rows[i].Error = api.Message(r.Err)
			}
		}
		if ok, err := printJSON(rows); ok {
			if err == nil && runErr != nil {
				err = runErr
			}
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", r.Email, api.Message(r.Err))
			}
		}
		ok, failed, total := backup.Summary(results)
		fmt.Printf("%d towns backed up (%s), %d failed\n", ok, towns.FormatSize(total), failed)
		if runErr != nil {
			return runErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d backups failed", failed, len(emails))
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().BoolVar(&backupAll, "all", false, "back up every user's town")
	backupCmd.Flags().IntVar(&backupConcurrency, "concurrency", backup.DefaultConcurrency, "towns exported at once")
	rootCmd.AddCommand(backupCmd)
}
