// Package backup copies exported towns into S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/config"
)

// Exporter downloads a user's town.
type Exporter interface {
	AdminExportTown(ctx context.Context, target string, w io.Writer) (int64, error)
}

// Lister enumerates the game directory.
type Lister interface {
	ListUsers(ctx context.Context) ([]api.User, error)
}

// Putter stores one object. *s3.Client satisfies it.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DefaultConcurrency bounds parallel exports so the game server is not
// flooded.
const DefaultConcurrency = 4

// Result is the outcome for one town.
type Result struct {
	Email string
	Key   string
	Size  int64
	Err   error
}

// Archiver exports towns through the admin API and uploads them.
type Archiver struct {
	export      Exporter
	put         Putter
	bucket      string
	prefix      string
	concurrency int
	now         func() time.Time
	audit       *audit.Store
	actor       string

	mu     sync.Mutex
	notify func(Result)
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithConcurrency sets how many towns are archived at once.
func WithConcurrency(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithAudit records each upload in store under actor.
func WithAudit(store *audit.Store, actor string) Option {
	return func(a *Archiver) {
		a.audit = store
		a.actor = actor
	}
}

// WithNotify calls f as each town finishes. Calls are serialized.
func WithNotify(f func(Result)) Option {
	return func(a *Archiver) { a.notify = f }
}

// WithClock overrides the time used for the date folder.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

// New creates an Archiver writing to bucket under prefix.
func New(export Exporter, put Putter, bucket, prefix string, opts ...Option) (*Archiver, error) {
	if bucket == "" {
		return nil, api.Invalid("backup.bucket", "is required")
	}
	a := &Archiver{
		export:      export,
		put:         put,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Key returns the object key for email's town on day.
func (a *Archiver) Key(day time.Time, email string) string {
	return path.Join(a.prefix, day.UTC().Format("2006-01-02"), email+".pb")
}

// Run archives the towns of emails and returns one result per email, in
// input order. A failure for one town does not stop the others; Run only
// returns an error when ctx ends.
func (a *Archiver) Run(ctx context.Context, emails []string) ([]Result, error) {
	day := a.now()
	results := make([]Result, len(emails))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, email := range emails {
		g.Go(func() error {
			results[i] = a.archive(gctx, day, email)
			return ctx.Err()
		})
	}
	err := g.Wait()
	return results, err
}

func (a *Archiver) archive(ctx context.Context, day time.Time, email string) Result {
	res := Result{Email: email, Key: a.Key(day, email)}
	res.Size, res.Err = a.upload(ctx, res.Key, email)
	a.audit.Record(ctx, audit.Entry{
		Actor:   a.actor,
		Surface: "backup",
		Action:  audit.ActionBackup,
		Target:  email,
		Summary: fmt.Sprintf("s3://%s/%s", a.bucket, res.Key),
	}, res.Err)
	if a.notify != nil {
		a.mu.Lock()
		a.notify(res)
		a.mu.Unlock()
	}
	return res
}

func (a *Archiver) upload(ctx context.Context, key, email string) (int64, error) {
	if email == "" {
		return 0, api.Invalid("email", "is required")
	}
	var buf bytes.Buffer
	n, err := a.export.AdminExportTown(ctx, email, &buf)
	if err != nil {
		return 0, fmt.Errorf("exporting %s: %w", email, err)
	}
	_, err = a.put.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("uploading %s: %w", key, err)
	}
	return n, nil
}

// AllEmails lists every user with a town, sorted and without duplicates.
func AllEmails(ctx context.Context, l Lister) ([]string, error) {
	users, err := l.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(users))
	var out []string
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		if _, ok := seen[u.Email]; ok {
			continue
		}
		seen[u.Email] = struct{}{}
		out = append(out, u.Email)
	}
	sort.Strings(out)
	return out, nil
}

// NewS3Client builds a client for cfg. Static keys are used when set;
// otherwise the default AWS credential chain applies. A custom endpoint
// selects path-style addressing when cfg asks for it.
func NewS3Client(ctx context.Context, cfg config.BackupConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

// Summary counts successes and failures.
func Summary(results []Result) (ok, failed int, total int64) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok++
		total += r.Size
	}
	return ok, failed, total
}
