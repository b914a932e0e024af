package grid

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/state"
)

// Granter issues a temporary player credential to an operator.
type Granter interface {
	ViewUser(ctx context.Context, email string) (*api.ViewGrant, error)
}

// Opener shows the public dashboard to the operator.
type Opener interface {
	Open(url string) error
}

// PrintOpener writes the URL for the operator to open.
type PrintOpener struct{ W io.Writer }

func (p PrintOpener) Open(url string) error {
	_, err := fmt.Fprintf(p.W, "Open %s to view the user's dashboard\n", url)
	return err
}

// Impersonator implements "view as user".
type Impersonator struct {
	Granter   Granter
	State     *state.Store
	Opener    Opener
	Dashboard string
	Audit     *audit.Store
	Actor     string
}

// DashboardURL returns base with the viewed user and the credential
// carried in the query, so a fresh browser context is signed in as them.
func DashboardURL(base string, grant *api.ViewGrant) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing public dashboard url: %w", err)
	}
	q := u.Query()
	q.Set("view_as_user", grant.Email)
	q.Set("token", grant.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ViewAs obtains a credential for email, stores it in the public session
// slots and opens the public dashboard signed in as that user. Any player
// session already stored locally is replaced.
func (im *Impersonator) ViewAs(ctx context.Context, email string) error {
	err := im.viewAs(ctx, email)
	im.Audit.Record(ctx, audit.Entry{
		Actor:   im.Actor,
		Surface: "public users",
		Action:  audit.ActionViewAs,
		Target:  email,
		Summary: "view dashboard as user",
	}, err)
	return err
}

func (im *Impersonator) viewAs(ctx context.Context, email string) error {
	if email == "" {
		return api.Invalid("email", "is required")
	}
	grant, err := im.Granter.ViewUser(ctx, email)
	if err != nil {
		return err
	}
	err = im.State.SavePublicSession(ctx, state.PublicSession{Email: grant.Email, Token: grant.Token})
	if err != nil {
		return fmt.Errorf("storing view credential: %w", err)
	}
	if im.Opener == nil {
		return nil
	}
	target, err := DashboardURL(im.Dashboard, grant)
	if err != nil {
		return err
	}
	return im.Opener.Open(target)
}
