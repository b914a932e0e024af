package dashboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/prompt"
)

// SetEvent makes the event keyed by eventTime current, after confirmation.
func (c *Controller) SetEvent(ctx context.Context, eventTime int64, name string) (*api.EventChange, error) {
	label := name
	if label == "" {
		label = strconv.FormatInt(eventTime, 10)
	}

	var change *api.EventChange
	err := c.confirmed(prompt.Question{Label: fmt.Sprintf("Change the current event to %s?", label)}, func() error {
		var err error
		change, err = c.api.SetEvent(ctx, eventTime)
		return err
	})
	c.record(ctx, audit.ActionEventSet, strconv.FormatInt(eventTime, 10), "set event "+label, err)
	return change, c.afterChange(ctx, err)
}

// AdjustEventTime shifts the event clock by minutes, after confirmation.
func (c *Controller) AdjustEventTime(ctx context.Context, minutes int) error {
	if minutes == 0 {
		return api.Invalid("minutes", "must not be zero")
	}
	q := prompt.Question{Label: fmt.Sprintf("Adjust the event time by %+d minutes?", minutes)}
	err := c.confirmed(q, func() error {
		return c.api.AdjustEventTime(ctx, minutes)
	})
	c.record(ctx, audit.ActionEventAdjust, fmt.Sprintf("%+d", minutes), "adjust event time", err)
	return c.afterChange(ctx, err)
}

// ResetEventTime puts the event clock back to now, after confirmation.
func (c *Controller) ResetEventTime(ctx context.Context) error {
	err := c.confirmed(prompt.Question{Label: "Reset the event time to the current time?"}, func() error {
		return c.api.ResetEventTime(ctx)
	})
	c.record(ctx, audit.ActionEventReset, "", "reset event time", err)
	return c.afterChange(ctx, err)
}

// Restart restarts the game server, after confirmation, and returns the
// server's message. The dashboard is not reloaded.
func (c *Controller) Restart(ctx context.Context) (string, error) {
	var msg string
	err := c.confirmed(prompt.Question{Label: "Are you sure you want to restart the server?"}, func() error {
		var err error
		msg, err = c.api.RestartServer(ctx)
		return err
	})
	c.record(ctx, audit.ActionServerControl, "restart", "restart server", err)
	return msg, err
}

// Stop stops the game server, after confirmation, and returns the server's
// message.
func (c *Controller) Stop(ctx context.Context) (string, error) {
	var msg string
	err := c.confirmed(prompt.Question{Label: "Are you sure you want to stop the server?"}, func() error {
		var err error
		msg, err = c.api.StopServer(ctx)
		return err
	})
	c.record(ctx, audit.ActionServerControl, "stop", "stop server", err)
	return msg, err
}
