package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// AdminImportTown replaces target's town with the raw bytes of r.
func (c *Client) AdminImportTown(ctx context.Context, target string, r io.Reader, size int64) error {
	if target == "" {
		return Invalid("target_user", "is required")
	}
	return c.rawUpload(ctx, "import town", "/api/admin/import_town", url.Values{"target_user": {target}}, nil, r, size)
}

// AdminExportTown streams target's town into w.
func (c *Client) AdminExportTown(ctx context.Context, target string, w io.Writer) (int64, error) {
	if target == "" {
		return 0, Invalid("target_user", "is required")
	}
	return c.download(ctx, "export town", "/api/admin/export_town", url.Values{"target_user": {target}}, w)
}

// AdminDeleteTown deletes target's town.
func (c *Client) AdminDeleteTown(ctx context.Context, target string) error {
	if target == "" {
		return Invalid("target_user", "is required")
	}
	return c.do(ctx, "delete town", http.MethodPost, "/api/admin/delete_town", nil,
		map[string]string{"target_user": target}, nil)
}

// ViewGrant is a temporary player credential issued to an operator.
type ViewGrant struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	IsAdminView bool   `json:"is_admin_view"`
}

// ViewUser asks for a credential that opens email's public dashboard.
func (c *Client) ViewUser(ctx context.Context, email string) (*ViewGrant, error) {
	if email == "" {
		return nil, Invalid("email", "is required")
	}
	var out ViewGrant
	if err := c.do(ctx, "view user", http.MethodGet, "/api/admin/view_user", url.Values{"email": {email}}, nil, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &AppError{Op: "view user", Message: "server did not return a token"}
	}
	if out.Email == "" {
		out.Email = email
	}
	return &out, nil
}
