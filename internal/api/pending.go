package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Pending upload states.
const (
	PendingStatus  = "pending"
	ApprovedStatus = "approved"
	RejectedStatus = "rejected"
)

// PendingTown is a submitted town awaiting review.
type PendingTown struct {
	ID              Text   `json:"id"`
	Email           string `json:"email"`
	TownName        string `json:"town_name"`
	Description     string `json:"description"`
	FilePath        string `json:"file_path"`
	FileSize        int64  `json:"file_size"`
	SubmittedAt     Text   `json:"submitted_at"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// Submitted parses SubmittedAt, which the server sends either as epoch
// seconds or as an RFC 3339 or "2006-01-02 15:04:05" string.
func (p PendingTown) Submitted() time.Time {
	if n, ok := p.SubmittedAt.Int(); ok {
		return time.Unix(n, 0)
	}
	for _, layout := range []string{time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, p.SubmittedAt.String()); err == nil {
			return t
		}
	}
	return time.Time{}
}

// PendingTowns lists uploads awaiting review.
func (c *Client) PendingTowns(ctx context.Context) ([]PendingTown, error) {
	var out struct {
		Towns []PendingTown `json:"towns"`
	}
	if err := c.do(ctx, "pending towns", http.MethodGet, "/api/get_pending_towns", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Towns, nil
}

// ApprovePendingTown accepts an upload. targetEmail, when set, installs the
// town for a different user than the submitter.
func (c *Client) ApprovePendingTown(ctx context.Context, id, targetEmail string) error {
	if id == "" {
		return Invalid("id", "is required")
	}
	body := map[string]any{"id": idValue(id)}
	if targetEmail != "" {
		body["target_email"] = targetEmail
	}
	return c.do(ctx, "approve town", http.MethodPost, "/api/approve_pending_town", nil, body, nil)
}

// RejectPendingTown declines an upload with an optional reason.
func (c *Client) RejectPendingTown(ctx context.Context, id, reason string) error {
	if id == "" {
		return Invalid("id", "is required")
	}
	body := map[string]any{"id": idValue(id)}
	if reason != "" {
		body["reason"] = reason
	}
	return c.do(ctx, "reject town", http.MethodPost, "/api/reject_pending_town", nil, body, nil)
}

// idValue sends numeric ids as JSON numbers, which is what the server
// stores, and anything else as a string.
func idValue(id string) any {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.Number(id)
	}
	return id
}
