package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/state"
	"github.com/springfield-ops/townctl/internal/towns"
)

var (
	townSelf    bool
	townToken   string
	townEmail   string
	townFor     string
	townOut     string
	townPattern string
)

var townCmd = &cobra.Command{
	Use:   "town",
	Short: "Load, save, copy, import, export and delete towns",
	Long: `Moves town saves between the local disk and the game server.

By default commands act on the staff surface. With --self they act on the
player logged in with ` + "`townctl login --public`" + `.`,
}

// townClient builds the towns client for the selected surface and returns
// the player's email when acting on the self-service surface.
func townClient(ctx context.Context, a *app) (*towns.Client, string, error) {
	opts := []towns.Option{
		towns.WithConfirmer(confirmer()),
		towns.WithProgress(a.reporter()),
		towns.WithAudit(a.audit, a.actor()),
	}

	if townSelf {
		c, sess, err := a.player(ctx)
		if err != nil {
			return nil, "", err
		}
		return towns.New(c, towns.SelfService, opts...), sess.Email, nil
	}

	c, err := a.staff(ctx)
	if err != nil {
		return nil, "", err
	}
	surface := towns.Staff
	surface.Endpoint = a.cfg.Staff.Endpoint
	surface.AuthHeader = a.cfg.Staff.AuthHeader

	token := townToken
	if token == "" {
		token, _ = a.state.Lookup(ctx, state.KeyNucleusToken)
	}
	if token != "" {
		opts = append(opts, towns.WithToken(token))
	}
	return towns.New(c, surface, opts...), "", nil
}

// withTowns opens the app and a towns client for the duration of fn.
func withTowns(fn func(ctx context.Context, a *app, tc *towns.Client, self string, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		tc, self, err := townClient(cmd.Context(), a)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), a, tc, self, args)
	}
}

var townLoadCmd = &cobra.Command{
	Use:   "load <email>",
	Short: "Load a user's saved town into the running game",
	Args:  cobra.ExactArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, _ string, args []string) error {
		res, err := tc.Load(ctx, args[0])
		if err != nil {
			return err
		}
		result(res.Message, "Town loaded for "+args[0])
		return nil
	}),
}

var townSaveCmd = &cobra.Command{
	Use:   "save <email>",
	Short: "Save the running town under a user's email",
	Args:  cobra.ExactArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, _ string, args []string) error {
		res, err := tc.SaveAs(ctx, args[0])
		if err != nil {
			return err
		}
		result(res.Message, "Town saved as "+args[0])
		return nil
	}),
}

var townCopyCmd = &cobra.Command{
	Use:   "copy <source-email> <target-email>",
	Short: "Copy one user's town onto another user",
	Args:  cobra.ExactArgs(2),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, _ string, args []string) error {
		res, err := tc.Copy(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		result(res.Message, fmt.Sprintf("Town copied from %s to %s", args[0], args[1]))
		return nil
	}),
}

var townImportCmd = &cobra.Command{
	Use:   "import <file.pb>",
	Short: "Upload a town file",
	Long: `Uploads a .pb town file. On the staff surface the file is staged and then
imported, for --email when given or into the running game otherwise; --for
imports straight into a user's account through the admin API. With --self
the file replaces your own town.`,
	Args: cobra.ExactArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, self string, args []string) error {
		switch {
		case townSelf:
			if err := tc.ImportSelf(ctx, self, args[0]); err != nil {
				return err
			}
			fmt.Println("Town imported")
		case townFor != "":
			if err := tc.ImportFor(ctx, townFor, args[0]); err != nil {
				return err
			}
			fmt.Printf("Town imported for %s\n", townFor)
		default:
			res, err := tc.Import(ctx, townEmail, args[0])
			if err != nil {
				return err
			}
			result(res.Message, "Town imported")
		}
		return nil
	}),
}

var townExportCmd = &cobra.Command{
	Use:   "export [email]",
	Short: "Download a town to {email}.pb",
	Args:  cobra.MaximumNArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, self string, args []string) error {
		email := self
		if !townSelf {
			if len(args) == 0 {
				return api.Invalid("email", "enter the user's email")
			}
			email = args[0]
		}
		path, err := tc.Export(ctx, email, townOut)
		if err != nil {
			return err
		}
		fmt.Printf("Town exported to %s\n", path)
		return nil
	}),
}

var townDeleteCmd = &cobra.Command{
	Use:   "delete [email]",
	Short: "Delete a town from the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, self string, args []string) error {
		email := self
		if !townSelf {
			if len(args) == 0 {
				return api.Invalid("email", "enter the user's email")
			}
			email = args[0]
		}
		if err := tc.Delete(ctx, email); err != nil {
			return err
		}
		if townSelf {
			_ = a.state.Delete(ctx, state.KeyTownSize)
			_ = a.state.Delete(ctx, state.KeyTownLastModified)
		}
		fmt.Println("Town deleted")
		return nil
	}),
}

var townInfoCmd = &cobra.Command{
	Use:   "info [email]",
	Short: "Show whether a user has a town and when it was saved",
	Args:  cobra.MaximumNArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, self string, args []string) error {
		email := self
		if len(args) == 1 {
			email = args[0]
		}
		if email == "" {
			return api.Invalid("email", "enter the user's email")
		}
		info, err := tc.Info(ctx, email)
		if err != nil {
			return err
		}
		if townSelf && info.HasTown {
			_ = a.state.Set(ctx, state.KeyTownSize, fmt.Sprint(info.Size))
			_ = a.state.Set(ctx, state.KeyTownLastModified, fmt.Sprint(info.LastModified))
		}
		if ok, err := printJSON(info); ok {
			return err
		}
		if !info.HasTown {
			fmt.Printf("%s has no town\n", email)
			return nil
		}
		fmt.Printf("%s: %s", email, towns.FormatSize(info.Size))
		if m := info.Modified(); !m.IsZero() {
			fmt.Printf(", last saved %s", m.Local().Format(time.DateTime))
		}
		fmt.Println()
		return nil
	}),
}

var townBatchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Import every {email}.pb under a directory for its user",
	Args:  cobra.ExactArgs(1),
	RunE: withTowns(func(ctx context.Context, a *app, tc *towns.Client, _ string, args []string) error {
		paths, err := towns.SelectFiles(args[0], townPattern)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No town files matched")
			return nil
		}

		results := tc.ImportBatch(ctx, paths)
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "FAIL %s: %s\n", r.Path, userMessage(r.Err))
				continue
			}
			fmt.Printf("ok   %s -> %s\n", r.Path, r.Email)
		}
		fmt.Printf("%d imported, %d failed\n", len(results)-failed, failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d imports failed", failed, len(results))
		}
		return nil
	}),
}

func init() {
	townCmd.PersistentFlags().BoolVar(&townSelf, "self", false, "act on your own town through the player portal")
	townCmd.PersistentFlags().StringVar(&townToken, "token", "", "token for town operations (default: stored nucleus token)")
	townImportCmd.Flags().StringVar(&townEmail, "email", "", "import for this user after staging")
	townImportCmd.Flags().StringVar(&townFor, "for", "", "import directly into this user's account")
	townExportCmd.Flags().StringVarP(&townOut, "out", "o", ".", "output file or directory")
	townBatchCmd.Flags().StringVar(&townPattern, "pattern", "", "doublestar pattern relative to dir (default **/*.pb)")

	townCmd.AddCommand(townLoadCmd, townSaveCmd, townCopyCmd, townImportCmd, townExportCmd, townDeleteCmd, townInfoCmd, townBatchCmd)
	rootCmd.AddCommand(townCmd)
}
