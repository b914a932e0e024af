package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/guard"
	"github.com/springfield-ops/townctl/internal/prompt"
	"github.com/springfield-ops/townctl/internal/state"
)

var (
	loginPublic  bool
	loginUser    string
	loginNucleus string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as staff, or as a player with --public",
	Long: `Logs in to the game server and stores the session in the local state
database. Staff sessions last 24 hours. With --public the player portal
login is used and the bearer token is stored instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		user := loginUser
		if user == "" && !loginPublic {
			user = a.cfg.Username
		}
		if user == "" {
			label := "Username"
			if loginPublic {
				label = "Email"
			}
			if user, err = prompt.Ask(label, ""); err != nil {
				return err
			}
		}
		password, err := prompt.Password(os.Stderr, "Password")
		if err != nil {
			return err
		}

		if loginPublic {
			res, err := a.api.PublicLogin(ctx, user, password)
			if err != nil {
				return err
			}
			err = a.state.SavePublicSession(ctx, state.PublicSession{
				Email:       res.UserInfo.Email,
				Token:       res.Token,
				DisplayName: res.UserInfo.DisplayName,
			})
			if err != nil {
				return fmt.Errorf("storing login: %w", err)
			}
			fmt.Printf("Logged in as %s\n", res.UserInfo.Email)
			return nil
		}

		login, err := a.api.Login(ctx, user, password)
		if err != nil {
			return err
		}
		if err := a.state.SetWithTTL(ctx, state.KeySession, login.Token, state.SessionTTL); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
		if loginNucleus != "" {
			if err := a.state.Set(ctx, state.KeyNucleusToken, loginNucleus); err != nil {
				return fmt.Errorf("storing nucleus token: %w", err)
			}
		}
		fmt.Printf("Logged in as %s (%s)\n", user, login.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored staff session, or the player login with --public",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if loginPublic {
			if err := a.state.ClearPublicSession(ctx); err != nil {
				return err
			}
			fmt.Println("Player login cleared")
			return nil
		}

		var server guard.Logouter
		if c, err := a.staff(ctx); err == nil {
			server = c
		}
		_, err = guard.Logout(ctx, server, a.state)
		fmt.Println("Logged out")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: the server did not confirm the logout: %s\n", userMessage(err))
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Validate the stored sessions with the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		token, _ := a.state.Lookup(ctx, state.KeySession)
		d, err := guard.New(a.api).Check(ctx, token, guard.RouteAPI)
		switch {
		case err != nil:
			return err
		case d.Allowed():
			fmt.Printf("Staff: %s (%s)\n", d.Info.Username, d.Info.Role)
		default:
			fmt.Println("Staff: not logged in")
		}

		if sess, ok := a.state.PublicSession(ctx); ok {
			fmt.Printf("Player: %s\n", sess.Email)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginPublic, "public", false, "use the player portal")
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "username, or email with --public")
	loginCmd.Flags().StringVar(&loginNucleus, "nucleus-token", "", "token sent in mh_auth_params for town operations")
	logoutCmd.Flags().BoolVar(&loginPublic, "public", false, "clear the player login")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
