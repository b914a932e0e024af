package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/state"
)

var prefKeys = map[string]state.Key{
	"dark-mode":     state.KeyDarkMode,
	"advanced-mode": state.KeyAdvancedMode,
}

var prefsCmd = &cobra.Command{
	Use:   "prefs [dark-mode|advanced-mode] [on|off]",
	Short: "Show or change display preferences",
	Long: `Display preferences are shared by the CLI and the staff panel. Advanced
mode adds the device identity columns to user listings; dark mode switches
the panel theme.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		if len(args) == 0 {
			for _, name := range []string{"advanced-mode", "dark-mode"} {
				fmt.Printf("%-14s %s\n", name, onOff(a.state.Bool(ctx, prefKeys[name])))
			}
			return nil
		}
		key, ok := prefKeys[args[0]]
		if !ok {
			return api.Invalid("pref", "must be dark-mode or advanced-mode")
		}
		if len(args) == 1 {
			fmt.Println(onOff(a.state.Bool(ctx, key)))
			return nil
		}
		v, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		if err := a.state.SetBool(ctx, key, v); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", args[0], onOff(v))
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	return false, api.Invalid("value", "must be on or off")
}

func init() {
	rootCmd.AddCommand(prefsCmd)
}
