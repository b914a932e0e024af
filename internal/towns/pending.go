package towns

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/progress"
	"github.com/springfield-ops/townctl/internal/prompt"
)

// Pending lists submitted towns awaiting review.
func (c *Client) Pending(ctx context.Context) ([]api.PendingTown, error) {
	towns, err := c.api.PendingTowns(ctx)
	if err != nil {
		return nil, err
	}
	out := towns[:0]
	for _, t := range towns {
		if t.Status == "" || t.Status == api.PendingStatus {
			out = append(out, t)
		}
	}
	return out, nil
}

// Approve accepts submission id, installing it for targetEmail when set or
// for the submitter otherwise.
func (c *Client) Approve(ctx context.Context, id, targetEmail string) error {
	err := c.api.ApprovePendingTown(ctx, id, targetEmail)
	summary := "approve submission " + id
	if targetEmail != "" {
		summary += " for " + targetEmail
	}
	c.record(ctx, audit.ActionPendingApprove, id, summary, err)
	return err
}

// Reject declines submission id after confirmation.
func (c *Client) Reject(ctx context.Context, id, reason string) error {
	err := prompt.Require(c.confirm, prompt.Question{Label: fmt.Sprintf("Reject submission %s?", id)})
	if err == nil {
		err = c.api.RejectPendingTown(ctx, id, strings.TrimSpace(reason))
	}
	c.record(ctx, audit.ActionPendingReject, id, "reject submission "+id, err)
	return err
}

// Submission describes a town offered for review.
type Submission struct {
	Email       string
	TownName    string
	Description string
	Path        string
}

// Submit uploads a town for operator review and returns the id the server
// assigned, if any. The file limit is the surface's, which for
// PublicSubmission is larger than for direct imports.
func (c *Client) Submit(ctx context.Context, s Submission) (string, error) {
	if strings.TrimSpace(s.TownName) == "" {
		s.TownName = DefaultTownName(strings.TrimSpace(s.Email))
	}
	id, err := c.submit(ctx, s)
	c.record(ctx, audit.ActionTownSubmit, s.Email, "submit "+s.TownName, err)
	return id, err
}

func (c *Client) submit(ctx context.Context, s Submission) (string, error) {
	s.Email = strings.TrimSpace(s.Email)
	if s.Email == "" {
		return "", api.Invalid("email", "is required")
	}
	lf, err := ValidateFile(s.Path, c.surface.MaxFileSize)
	if err != nil {
		return "", err
	}
	f, err := os.Open(lf.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", lf.Path, err)
	}
	defer f.Close()

	rep := c.progress()
	rep.Start(lf.Size, "Submitting "+lf.Name)
	defer rep.Finish()

	return c.api.SubmitTownUpload(ctx, api.Submission{
		Email:       s.Email,
		TownName:    s.TownName,
		Description: strings.TrimSpace(s.Description),
		FileName:    lf.Name,
	}, progress.Reader(f, rep))
}
