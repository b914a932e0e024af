package dashboard

import (
	"context"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
)

// Each settings group is saved on its own and reloaded on success.

func (c *Controller) saveSettings(ctx context.Context, group string, do func() error) error {
	err := do()
	c.record(ctx, audit.ActionSettingsUpdate, group, "update "+group+" settings", err)
	return c.afterChange(ctx, err)
}

// Config fetches the editable settings.
func (c *Controller) Config(ctx context.Context) (*api.DashboardConfig, error) {
	return c.api.DashboardConfig(ctx)
}

// SaveBackup writes the backup settings.
func (c *Controller) SaveBackup(ctx context.Context, s api.BackupSettings) error {
	return c.saveSettings(ctx, "backup", func() error { return c.api.UpdateBackupSettings(ctx, s) })
}

// SaveAPI writes the API settings.
func (c *Controller) SaveAPI(ctx context.Context, s api.APISettings) error {
	return c.saveSettings(ctx, "api", func() error { return c.api.UpdateAPISettings(ctx, s) })
}

// SaveLand writes the land settings.
func (c *Controller) SaveLand(ctx context.Context, s api.LandSettings) error {
	return c.saveSettings(ctx, "land", func() error { return c.api.UpdateLandSettings(ctx, s) })
}

// SaveSecurity writes the security settings.
func (c *Controller) SaveSecurity(ctx context.Context, s api.SecuritySettings) error {
	return c.saveSettings(ctx, "security", func() error { return c.api.UpdateSecuritySettings(ctx, s) })
}

// SaveInitialDonuts sets the starting balance of new accounts from raw
// operator input, clamped to the allowed range.
func (c *Controller) SaveInitialDonuts(ctx context.Context, input string) (int, error) {
	n := api.ClampDonuts(input)
	return n, c.saveSettings(ctx, "initial_donuts", func() error { return c.api.UpdateInitialDonuts(ctx, n) })
}

// SaveServerAddress updates the advertised IP and, when port is non-zero,
// the game port.
func (c *Controller) SaveServerAddress(ctx context.Context, ip string, port int) error {
	return c.saveSettings(ctx, "server", func() error {
		if ip != "" {
			if err := c.api.UpdateServerIP(ctx, ip); err != nil {
				return err
			}
		}
		if port != 0 {
			return c.api.UpdateServerPort(ctx, port)
		}
		return nil
	})
}

// SaveDLCDirectory changes where DLC content is served from.
func (c *Controller) SaveDLCDirectory(ctx context.Context, dir string) error {
	return c.saveSettings(ctx, "dlc", func() error { return c.api.UpdateDLCDirectory(ctx, dir) })
}

// SaveCurrency writes a user's donut balance from raw operator input,
// clamped to the allowed range, and returns the value written.
func (c *Controller) SaveCurrency(ctx context.Context, email, input string) (int, error) {
	n := api.ClampDonuts(input)
	err := c.api.AdminSaveCurrency(ctx, email, n)
	c.record(ctx, audit.ActionCurrencySave, email, "set donuts", err)
	return n, err
}
