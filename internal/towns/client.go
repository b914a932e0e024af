package towns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/progress"
	"github.com/springfield-ops/townctl/internal/prompt"
)

// Client performs town transfers on one Surface.
type Client struct {
	api     *api.Client
	surface Surface
	token   string

	confirm  prompt.Confirmer
	progress func() progress.Reporter
	audit    *audit.Store
	actor    string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the token sent in the surface's auth header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithConfirmer sets how destructive operations are confirmed. Without one
// they are always refused.
func WithConfirmer(conf prompt.Confirmer) Option {
	return func(c *Client) { c.confirm = conf }
}

// WithProgress sets the reporter factory used for each transfer.
func WithProgress(f func() progress.Reporter) Option {
	return func(c *Client) { c.progress = f }
}

// WithAudit records every operation in store under actor.
func WithAudit(store *audit.Store, actor string) Option {
	return func(c *Client) {
		c.audit = store
		c.actor = actor
	}
}

// New creates a Client for surface on top of ac.
func New(ac *api.Client, surface Surface, opts ...Option) *Client {
	c := &Client{
		api:      ac,
		surface:  surface,
		progress: func() progress.Reporter { return progress.Nop{} },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Surface returns the surface the client operates on.
func (c *Client) Surface() Surface { return c.surface }

func (c *Client) record(ctx context.Context, action audit.Action, target, summary string, err error) {
	c.audit.Record(ctx, audit.Entry{
		Actor:   c.actor,
		Surface: c.surface.Name,
		Action:  action,
		Target:  target,
		Summary: summary,
	}, err, prompt.ErrNotConfirmed)
}

func (c *Client) operate(ctx context.Context, req api.TownOpRequest) (*api.TownOpResult, error) {
	if c.surface.Endpoint == "" {
		return nil, fmt.Errorf("%s surface does not support %s operations", c.surface.Name, req.Operation)
	}
	return c.api.TownOperation(ctx, c.surface.Endpoint, c.surface.AuthHeader, c.token, req)
}

// Load makes the server load email's saved town into the running game.
func (c *Client) Load(ctx context.Context, email string) (*api.TownOpResult, error) {
	res, err := c.operate(ctx, api.TownOpRequest{Operation: api.TownOpLoad, Email: email})
	c.record(ctx, audit.ActionTownLoad, email, "load town", err)
	return res, err
}

// SaveAs saves the running town under email.
func (c *Client) SaveAs(ctx context.Context, email string) (*api.TownOpResult, error) {
	res, err := c.operate(ctx, api.TownOpRequest{Operation: api.TownOpSave, Email: email})
	c.record(ctx, audit.ActionTownSave, email, "save town", err)
	return res, err
}

// Copy duplicates source's town onto target.
func (c *Client) Copy(ctx context.Context, source, target string) (*api.TownOpResult, error) {
	res, err := c.operate(ctx, api.TownOpRequest{Operation: api.TownOpCopy, Source: source, Target: target})
	c.record(ctx, audit.ActionTownCopy, target, "copy town from "+source, err)
	return res, err
}

// Import stages path on the server and then imports it, for email when
// given or into the running game otherwise. The file is validated before
// anything is sent.
func (c *Client) Import(ctx context.Context, email, path string) (*api.TownOpResult, error) {
	res, err := c.importStaged(ctx, email, path)
	c.record(ctx, audit.ActionTownImport, email, "import "+filepath.Base(path), err)
	return res, err
}

func (c *Client) importStaged(ctx context.Context, email, path string) (*api.TownOpResult, error) {
	if c.token == "" {
		return nil, api.Invalid("token", "authentication token is required")
	}
	lf, err := ValidateFile(path, c.surface.MaxFileSize)
	if err != nil {
		return nil, err
	}

	staged, err := c.upload(ctx, lf, func(r io.Reader) (string, error) {
		return c.api.UploadTownFile(ctx, lf.Name, r)
	})
	if err != nil {
		return nil, err
	}
	return c.operate(ctx, api.TownOpRequest{Operation: api.TownOpImport, Email: email, FilePath: staged})
}

// ImportFor replaces target's town with the file at path through the admin
// API.
func (c *Client) ImportFor(ctx context.Context, target, path string) error {
	err := c.importFor(ctx, target, path)
	c.record(ctx, audit.ActionTownImport, target, "import "+filepath.Base(path), err)
	return err
}

func (c *Client) importFor(ctx context.Context, target, path string) error {
	if target == "" {
		return api.Invalid("target_user", "enter the user's email")
	}
	lf, err := ValidateFile(path, c.surface.MaxFileSize)
	if err != nil {
		return err
	}
	_, err = c.upload(ctx, lf, func(r io.Reader) (string, error) {
		return "", c.api.AdminImportTown(ctx, target, r, lf.Size)
	})
	return err
}

// ImportSelf replaces the caller's own town with the file at path.
func (c *Client) ImportSelf(ctx context.Context, email, path string) error {
	err := c.importSelf(ctx, email, path)
	c.record(ctx, audit.ActionTownImport, email, "import "+filepath.Base(path), err)
	return err
}

func (c *Client) importSelf(ctx context.Context, email, path string) error {
	if email == "" {
		return api.Invalid("email", "not logged in")
	}
	lf, err := ValidateFile(path, c.surface.MaxFileSize)
	if err != nil {
		return err
	}
	_, err = c.upload(ctx, lf, func(r io.Reader) (string, error) {
		return "", c.api.PublicImportTown(ctx, email, email+Ext, r, lf.Size)
	})
	return err
}

func (c *Client) upload(ctx context.Context, lf LocalFile, send func(io.Reader) (string, error)) (string, error) {
	f, err := os.Open(lf.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", lf.Path, err)
	}
	defer f.Close()

	rep := c.progress()
	rep.Start(lf.Size, "Uploading "+lf.Name)
	defer rep.Finish()

	return send(progress.Reader(f, rep))
}

// Export downloads email's town to dst. When dst is a directory, or ends in
// a separator, the file is written inside it as {email}.pb. The file only
// appears at its final path once fully downloaded.
func (c *Client) Export(ctx context.Context, email, dst string) (string, error) {
	path, err := c.export(ctx, email, dst)
	c.record(ctx, audit.ActionTownExport, email, "export to "+path, err)
	return path, err
}

func (c *Client) export(ctx context.Context, email, dst string) (string, error) {
	if email == "" {
		return "", api.Invalid("email", "enter the user's email")
	}
	path := ExportPath(email, dst)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".townctl-export-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	rep := c.progress()
	rep.Start(-1, "Downloading "+filepath.Base(path))
	w := progress.Writer(tmp, rep)

	if c.surface.Self {
		_, err = c.api.PublicExportTown(ctx, email, w)
	} else {
		_, err = c.api.AdminExportTown(ctx, email, w)
	}
	rep.Finish()
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("writing %s: %w", path, cerr)
	}
	if err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("saving %s: %w", path, err)
	}
	return path, nil
}

// ExportPath resolves where Export writes email's town for dst.
func ExportPath(email, dst string) string {
	name := email + Ext
	if dst == "" {
		return name
	}
	if os.IsPathSeparator(dst[len(dst)-1]) {
		return filepath.Join(dst, name)
	}
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		return filepath.Join(dst, name)
	}
	return dst
}

// Delete removes email's town after confirmation. The self-service surface
// asks the player to type DELETE; the staff surface asks yes/no. Nothing is
// sent unless the confirmation succeeds.
func (c *Client) Delete(ctx context.Context, email string) error {
	err := c.delete(ctx, email)
	c.record(ctx, audit.ActionTownDelete, email, "delete town", err)
	return err
}

func (c *Client) delete(ctx context.Context, email string) error {
	if email == "" {
		return api.Invalid("email", "enter the user's email")
	}

	q := prompt.Question{Label: fmt.Sprintf("Delete the town of %s? This cannot be undone.", email)}
	if c.surface.Self {
		q = prompt.Question{Label: "This will permanently delete your town.", Typed: "DELETE"}
	}
	if err := prompt.Require(c.confirm, q); err != nil {
		return err
	}

	if c.surface.Self {
		return c.api.PublicDeleteTown(ctx, email)
	}
	return c.api.AdminDeleteTown(ctx, email)
}

// Info reports whether email has a stored town.
func (c *Client) Info(ctx context.Context, email string) (*api.TownInfo, error) {
	return c.api.TownInfo(ctx, email)
}

// BatchResult is the outcome of one file in ImportBatch.
type BatchResult struct {
	Path  string
	Email string
	Err   error
}

// ImportBatch imports each file for the user named by its file name,
// stopping early only when ctx is cancelled.
func (c *Client) ImportBatch(ctx context.Context, paths []string) []BatchResult {
	out := make([]BatchResult, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			out = append(out, BatchResult{Path: p, Err: ctx.Err()})
			continue
		}
		email, ok := EmailFromFile(p)
		if !ok {
			out = append(out, BatchResult{Path: p, Err: api.Invalid("file", "name is not {email}.pb")})
			continue
		}
		var err error
		if c.surface.Self {
			err = errors.New("batch import needs the staff surface")
		} else {
			err = c.ImportFor(ctx, email, p)
		}
		out = append(out, BatchResult{Path: p, Email: email, Err: err})
	}
	return out
}
