package backup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/config"
	"github.com/springfield-ops/townctl/internal/db"
)

type fakeExporter struct {
	towns map[string]string
}

func (f fakeExporter) AdminExportTown(_ context.Context, target string, w io.Writer) (int64, error) {
	body, ok := f.towns[target]
	if !ok {
		return 0, &api.StatusError{Op: "export town", Code: http.StatusNotFound, Message: "No town found"}
	}
	n, err := io.WriteString(w, body)
	return int64(n), err
}

type memPutter struct {
	mu      sync.Mutex
	objects map[string]string
}

func (m *memPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func fixedDay() time.Time { return time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC) }

func TestRunUploadsEachTown(t *testing.T) {
	database, err := db.OpenMemory()
	require.NoError(t, err)
	defer database.Close()
	store := audit.NewStore(database)

	put := &memPutter{}
	a, err := New(fakeExporter{towns: map[string]string{
		"bart@example.com": "BART",
		"lisa@example.com": "LISA!",
	}}, put, "towns", "/nightly/", WithClock(fixedDay), WithAudit(store, "cron"))
	require.NoError(t, err)

	results, err := a.Run(t.Context(), []string{"bart@example.com", "homer@example.com", "lisa@example.com"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "nightly/2026-03-14/bart@example.com.pb", results[0].Key)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.True(t, api.IsNotFound(results[1].Err))
	assert.EqualValues(t, 5, results[2].Size)

	assert.Equal(t, map[string]string{
		"towns/nightly/2026-03-14/bart@example.com.pb": "BART",
		"towns/nightly/2026-03-14/lisa@example.com.pb": "LISA!",
	}, put.objects)

	ok, failed, total := Summary(results)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	assert.EqualValues(t, 9, total)

	entries, err := store.Query(t.Context(), audit.QueryFilter{Action: audit.ActionBackup})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(fakeExporter{}, &memPutter{}, "", "x")
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(fakeExporter{towns: map[string]string{"a@b.com": "A"}}, &memPutter{}, "towns", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = a.Run(ctx, []string{"a@b.com"})
	assert.True(t, errors.Is(err, context.Canceled))
}

type listUsers []api.User

func (l listUsers) ListUsers(context.Context) ([]api.User, error) { return l, nil }

func TestAllEmails(t *testing.T) {
	emails, err := AllEmails(t.Context(), listUsers{
		{Email: "lisa@example.com"}, {Email: ""}, {Email: "bart@example.com"}, {Email: "lisa@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bart@example.com", "lisa@example.com"}, emails)
}

func TestS3ClientAgainstFakeEndpoint(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewS3Client(t.Context(), config.BackupConfig{
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "secret",
		PathStyle: true,
	})
	require.NoError(t, err)

	a, err := New(fakeExporter{towns: map[string]string{"bart@example.com": "BART"}}, client, "towns", "daily", WithClock(fixedDay))
	require.NoError(t, err)

	results, err := a.Run(t.Context(), []string{"bart@example.com"})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.True(t, strings.HasPrefix(seen[0], "PUT /towns/daily/2026-03-14/bart@example.com.pb"), seen[0])
}

func TestNotifyCalledOncePerTown(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	a, err := New(fakeExporter{towns: map[string]string{"bart@example.com": "BART"}}, &memPutter{}, "towns", "",
		WithConcurrency(2),
		WithNotify(func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, r.Email)
		}))
	require.NoError(t, err)

	_, err = a.Run(t.Context(), []string{"bart@example.com", "nobody@example.com"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bart@example.com", "nobody@example.com"}, seen)
}
