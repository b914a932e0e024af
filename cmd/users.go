package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/grid"
	"github.com/springfield-ops/townctl/internal/state"
)

var (
	usersPublic bool
	usersField  string
	usersSet    []string
	saveLegacy  bool
	saveFind    string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Search, edit and delete users in the game or public directory",
}

// directory holds a grid over either user directory with its printer.
type directory struct {
	search func(ctx context.Context, field, term string) error
	all    func(ctx context.Context) error
	show   func(ctx context.Context, email string) error
	edit   func(ctx context.Context, email string, sets []string) error
	delete func(ctx context.Context, email string) error
}

func newDirectory[T grid.Record](src grid.Source[T], a *app, print func([]T) error) directory {
	g := grid.New(src, grid.WithConfirmer(confirmer()), grid.WithAudit(a.audit, a.actor()))
	report := func(rows []T, err error) error {
		if err != nil {
			return err
		}
		if ok, err := printJSON(rows); ok {
			return err
		}
		if len(rows) > 0 {
			if err := print(rows); err != nil {
				return err
			}
		}
		fmt.Fprintln(os.Stderr, g.View().Message)
		return nil
	}
	return directory{
		search: func(ctx context.Context, field, term string) error {
			return report(g.Search(ctx, field, term))
		},
		all: func(ctx context.Context) error {
			return report(g.All(ctx))
		},
		show: func(ctx context.Context, email string) error {
			rec, err := g.Edit(ctx, email)
			if err != nil {
				return err
			}
			return printRecord(rec)
		},
		edit: func(ctx context.Context, email string, sets []string) error {
			rec, err := g.Edit(ctx, email)
			if err != nil {
				return err
			}
			updated, err := applySets(*rec, sets)
			if err != nil {
				return err
			}
			if err := g.Save(ctx, updated); err != nil {
				return err
			}
			fmt.Println("User updated")
			return nil
		},
		delete: func(ctx context.Context, email string) error {
			if err := g.Delete(ctx, email); err != nil {
				return err
			}
			fmt.Println(g.View().Message)
			return nil
		},
	}
}

func openDirectory(cmd *cobra.Command) (*app, directory, error) {
	a, err := openApp()
	if err != nil {
		return nil, directory{}, err
	}
	c, err := a.staff(cmd.Context())
	if err != nil {
		a.Close()
		return nil, directory{}, err
	}
	if usersPublic {
		return a, newDirectory[api.PublicUser](grid.PublicDirectory{API: c}, a, printPublicUsers), nil
	}
	advanced := a.state.Bool(cmd.Context(), state.KeyAdvancedMode)
	list := func(users []api.User) error { return printUsers(users, advanced) }
	return a, newDirectory[api.User](grid.GameDirectory{API: c}, a, list), nil
}

// applySets changes fields of rec named by their JSON keys. Every other
// field keeps its current value, so the save resends the whole record.
func applySets[T any](rec T, sets []string) (T, error) {
	if len(sets) == 0 {
		return rec, api.Invalid("set", "give at least one --set key=value")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rec, err
	}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return rec, api.Invalid("set", fmt.Sprintf("%q is not key=value", kv))
		}
		switch fields[k].(type) {
		case bool:
			fields[k] = v == "true" || v == "1" || v == "yes"
		case string:
			fields[k] = v
		default:
			// Numbers and fields the server left out.
			if n := json.Number(v); isNumber(n) {
				fields[k] = n
			} else {
				fields[k] = v
			}
		}
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return rec, err
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return rec, api.Invalid("set", err.Error())
	}
	return out, nil
}

func isNumber(n json.Number) bool {
	_, err := n.Float64()
	return err == nil
}

func printRecord(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printUsers lists game users; advanced mode adds the device columns.
func printUsers(users []api.User, advanced bool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := "EMAIL\tUSER ID\tDISPLAY NAME\tTOWN\tCLIENT IP"
	if advanced {
		header += "\tDEVICE ID\tMAYHEM ID\tPLATFORM\tMANUFACTURER\tMODEL"
	}
	fmt.Fprintln(w, header)
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s", u.Email, u.UserID, u.DisplayName, u.TownName, u.ClientIP)
		if advanced {
			fmt.Fprintf(w, "\t%s\t%s\t%s\t%s\t%s", u.DeviceID, u.MayhemID, u.PlatformID, u.Manufacturer, u.Model)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func printPublicUsers(users []api.PublicUser) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tDISPLAY NAME\tTSTO EMAIL\tVERIFIED\tLOCKED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", u.Email, u.DisplayName, u.TSTOEmail, u.IsVerified, u.AccountLocked)
	}
	return w.Flush()
}

var usersSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search a directory by --field",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, dir, err := openDirectory(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		return dir.search(cmd.Context(), usersField, term)
	},
}

var usersAllCmd = &cobra.Command{
	Use:   "all",
	Short: "List the whole directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, dir, err := openDirectory(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return dir.all(cmd.Context())
	},
}

var usersShowCmd = &cobra.Command{
	Use:   "show <email>",
	Short: "Print every field of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, dir, err := openDirectory(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return dir.show(cmd.Context(), args[0])
	},
}

var usersEditCmd = &cobra.Command{
	Use:   "edit <email> --set key=value...",
	Short: "Change fields of a user; the full record is sent back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, dir, err := openDirectory(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return dir.edit(cmd.Context(), args[0], usersSet)
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete a user after confirmation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, dir, err := openDirectory(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return dir.delete(cmd.Context(), args[0])
	},
}

var usersViewAsCmd = &cobra.Command{
	Use:   "view-as <email>",
	Short: "Store a temporary player login for a user and show their dashboard URL",
	Long: `Requests a temporary credential for the user and stores it as the local
player login, replacing any player login already stored.`,
	Args: cobra.ExactArgs(1),
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
		im := &grid.Impersonator{
			Granter:   c,
			State:     a.state,
			Opener:    grid.PrintOpener{W: os.Stdout},
			Dashboard: a.cfg.PublicDashboardURL(),
			Audit:     a.audit,
			Actor:     a.actor(),
		}
		return im.ViewAs(cmd.Context(), args[0])
	},
}

var usersSaveCmd = &cobra.Command{
	Use:   "save <email>",
	Short: "Print a user's save, or the lines matching --find",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(func(ctx context.Context, a *app, ctl *dashboard.Controller) error {
			v, err := ctl.LoadSave(ctx, args[0], saveLegacy)
			if err != nil {
				return err
			}
			if saveFind == "" {
				if ok, err := printJSON(map[string]string{"username": v.Username, "save": v.Text}); ok {
					return err
				}
				fmt.Print(v.Text)
				return nil
			}
			return printMatches(v)
		})(cmd, args)
	},
}

// collectMatches walks find-next once around the save.
func collectMatches(v *dashboard.SaveView, find string) []dashboard.Match {
	m, ok := v.Search(find)
	var all []dashboard.Match
	for ok && len(all) < m.Total {
		all = append(all, m)
		m, ok = v.Next()
	}
	return all
}

// printMatches lists every occurrence of --find with its line.
func printMatches(v *dashboard.SaveView) error {
	all := collectMatches(v, saveFind)
	if done, err := printJSON(all); done {
		return err
	}
	if len(all) == 0 {
		fmt.Printf("No matches for %q\n", saveFind)
		return nil
	}
	lines := strings.Split(v.Text, "\n")
	for _, m := range all {
		fmt.Printf("%d:%d: %s\n", m.Line, m.Column, strings.TrimSpace(lines[m.Line-1]))
	}
	fmt.Printf("%d match(es)\n", len(all))
	return nil
}

func init() {
	usersSaveCmd.Flags().BoolVar(&saveLegacy, "legacy", false, "read the single-user legacy town")
	usersSaveCmd.Flags().StringVar(&saveFind, "find", "", "show only the lines containing this text")
	usersCmd.PersistentFlags().BoolVar(&usersPublic, "public", false, "use the public (self-service) directory")
	usersSearchCmd.Flags().StringVarP(&usersField, "field", "f", "", "field to search (default email)")
	usersEditCmd.Flags().StringArrayVar(&usersSet, "set", nil, "field=value to change, repeatable")

	usersCmd.AddCommand(usersSearchCmd, usersAllCmd, usersShowCmd, usersEditCmd, usersDeleteCmd, usersViewAsCmd, usersSaveCmd)
	rootCmd.AddCommand(usersCmd)
}
