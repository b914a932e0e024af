package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/state"
	"github.com/springfield-ops/townctl/internal/towns"
)

var currencySelf bool

var currencyCmd = &cobra.Command{
	Use:   "currency",
	Short: "Read or set a user's donut balance",
}

var currencyGetCmd = &cobra.Command{
	Use:   "get [email]",
	Short: "Show a user's donuts, or your own with --self",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var cur *api.Currency
		if currencySelf {
			c, sess, err := a.player(ctx)
			if err != nil {
				return err
			}
			if cur, err = c.CurrencyInfo(ctx, sess.Email); err != nil {
				return err
			}
			if cur.HasCurrency {
				_ = a.state.Set(ctx, state.KeyDonuts, strconv.Itoa(cur.Donuts))
			}
		} else {
			if len(args) == 0 {
				return api.Invalid("email", "enter the user's email")
			}
			c, err := a.staff(ctx)
			if err != nil {
				return err
			}
			if cur, err = c.AdminGetCurrency(ctx, args[0]); err != nil {
				return err
			}
		}

		if ok, err := printJSON(cur); ok {
			return err
		}
		if !cur.HasCurrency {
			fmt.Println("No currency data")
			return nil
		}
		fmt.Printf("%d donuts\n", cur.Donuts)
		return nil
	},
}

var currencySetCmd = &cobra.Command{
	Use:   "set [email] <donuts>",
	Short: "Set a user's donuts (clamped to 0-100000)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		input := args[len(args)-1]
		if currencySelf {
			c, sess, err := a.player(ctx)
			if err != nil {
				return err
			}
			n := api.ClampDonuts(input)
			err = c.SaveCurrency(ctx, sess.Email, n)
			a.audit.Record(ctx, audit.Entry{
				Actor: sess.Email, Surface: "self-service", Action: audit.ActionCurrencySave,
				Target: sess.Email, Summary: "set donuts",
			}, err)
			if err != nil {
				return err
			}
			_ = a.state.Set(ctx, state.KeyDonuts, strconv.Itoa(n))
			fmt.Printf("Donuts set to %d\n", n)
			return nil
		}

		if len(args) != 2 {
			return api.Invalid("email", "enter the user's email")
		}
		c, err := a.staff(ctx)
		if err != nil {
			return err
		}
		ctl := dashboard.New(c, dashboard.WithAudit(a.audit, a.actor()))
		n, err := ctl.SaveCurrency(ctx, args[0], input)
		if err != nil {
			return err
		}
		fmt.Printf("Donuts for %s set to %d\n", args[0], n)
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage your player account",
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your display name, town and donuts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		c, sess, err := a.player(ctx)
		if err != nil {
			return err
		}
		info, err := c.ValidateToken(ctx, sess.Email, sess.Token)
		if err != nil {
			return err
		}
		fmt.Printf("Email:        %s\n", info.Email)
		fmt.Printf("Display name: %s\n", orNone(info.DisplayName))
		fmt.Printf("Verified:     %t\n", info.IsVerified)

		if town, err := c.TownInfo(ctx, sess.Email); err == nil {
			if town.HasTown {
				fmt.Printf("Town:         %s\n", formatTownSize(town))
			} else {
				fmt.Println("Town:         none")
			}
		}
		if cur, err := c.CurrencyInfo(ctx, sess.Email); err == nil && cur.HasCurrency {
			fmt.Printf("Donuts:       %d\n", cur.Donuts)
		}
		return nil
	},
}

var accountNameCmd = &cobra.Command{
	Use:   "name <display name>",
	Short: "Change your display name (at most 50 characters)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		c, sess, err := a.player(ctx)
		if err != nil {
			return err
		}
		name, err := c.UpdateDisplayName(ctx, sess.Email, args[0])
		if err != nil {
			return err
		}
		sess.DisplayName = name
		if err := a.state.SavePublicSession(ctx, sess); err != nil {
			return err
		}
		fmt.Printf("Display name set to %s\n", name)
		return nil
	},
}

func formatTownSize(t *api.TownInfo) string {
	s := towns.FormatSize(t.Size)
	if m := t.Modified(); !m.IsZero() {
		s += ", saved " + m.Local().Format("2006-01-02 15:04")
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	currencyCmd.PersistentFlags().BoolVar(&currencySelf, "self", false, "use your own player account")
	currencyCmd.AddCommand(currencyGetCmd, currencySetCmd)
	accountCmd.AddCommand(accountShowCmd, accountNameCmd)
	rootCmd.AddCommand(currencyCmd, accountCmd)
}
