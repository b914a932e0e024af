package towns

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/db"
	"github.com/springfield-ops/townctl/internal/prompt"
)

// recorder is a fake backend that remembers every request it served.
type recorder struct {
	mu       sync.Mutex
	requests []string
	handler  http.HandlerFunc
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.requests = append(r.requests, req.Method+" "+req.URL.Path)
	r.mu.Unlock()
	if r.handler != nil {
		r.handler(w, req)
		return
	}
	_, _ = w.Write([]byte(`{"success":true}`))
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

func setup(t *testing.T, surface Surface, h http.HandlerFunc, opts ...Option) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{handler: h}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	ac, err := api.New(srv.URL)
	require.NoError(t, err)
	return New(ac, surface, opts...), rec
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestImportRejectsWrongExtensionWithoutNetwork(t *testing.T) {
	for _, surface := range []Surface{Staff, SelfService, PublicSubmission} {
		c, rec := setup(t, surface, nil, WithToken("tok"))
		path := writeFile(t, "town.txt", 10)
		ctx := context.Background()

		_, err := c.Import(ctx, "a@b.com", path)
		assert.ErrorIs(t, err, api.ErrValidation)
		assert.ErrorIs(t, c.ImportFor(ctx, "a@b.com", path), api.ErrValidation)
		assert.ErrorIs(t, c.ImportSelf(ctx, "a@b.com", path), api.ErrValidation)
		_, err = c.Submit(ctx, Submission{Email: "a@b.com", Path: path})
		assert.ErrorIs(t, err, api.ErrValidation)

		assert.Empty(t, rec.calls(), "surface %s", surface.Name)
	}
}

func TestImportRejectsOversizeWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	big := writeFile(t, "big.pb", 5*MiB+1)

	staff, rec := setup(t, Staff, nil, WithToken("tok"))
	assert.ErrorIs(t, staff.ImportFor(ctx, "a@b.com", big), api.ErrValidation)
	_, err := staff.Import(ctx, "a@b.com", big)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Empty(t, rec.calls())

	self, rec := setup(t, SelfService, nil)
	assert.ErrorIs(t, self.ImportSelf(ctx, "a@b.com", big), api.ErrValidation)
	assert.Empty(t, rec.calls())

	// the same file is within the submission limit
	sub, rec := setup(t, PublicSubmission, nil)
	_, err = sub.Submit(ctx, Submission{Email: "a@b.com", Path: big})
	require.NoError(t, err)
	assert.Equal(t, []string{"POST /api/submit_town_upload"}, rec.calls())

	huge := writeFile(t, "huge.pb", 10*MiB+1)
	sub, rec = setup(t, PublicSubmission, nil)
	_, err = sub.Submit(ctx, Submission{Email: "a@b.com", Path: huge})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Empty(t, rec.calls())
}

func TestStaffImportStagesThenImports(t *testing.T) {
	path := writeFile(t, "town.pb", 3*MiB)

	var (
		uploaded int64
		opBody   api.TownOpRequest
	)
	c, rec := setup(t, Staff, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload_town_file":
			f, _, err := r.FormFile("town_file")
			require.NoError(t, err)
			uploaded, _ = io.Copy(io.Discard, f)
			_, _ = w.Write([]byte(`{"success":true,"filePath":"/srv/staging/town.pb"}`))
		case Staff.Endpoint:
			assert.Equal(t, "tok", r.Header.Get("mh_auth_params"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&opBody))
			_, _ = w.Write([]byte(`{"success":true,"message":"Town imported"}`))
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}, WithToken("tok"))

	res, err := c.Import(context.Background(), "user@example.com", path)
	require.NoError(t, err)
	assert.Equal(t, "Town imported", res.Message)
	assert.EqualValues(t, 3*MiB, uploaded)
	assert.Equal(t, api.TownOpImport, opBody.Operation)
	assert.Equal(t, "/srv/staging/town.pb", opBody.FilePath)
	assert.Equal(t, "user@example.com", opBody.Email)
	assert.Equal(t, []string{"POST /upload_town_file", "POST " + Staff.Endpoint}, rec.calls())
}

func TestStagingFailureStopsImport(t *testing.T) {
	path := writeFile(t, "town.pb", 100)
	c, rec := setup(t, Staff, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"disk full"}`))
	}, WithToken("tok"))

	_, err := c.Import(context.Background(), "", path)
	assert.Equal(t, "disk full", api.Message(err))
	assert.Equal(t, []string{"POST /upload_town_file"}, rec.calls())
}

func TestOperationsNeedToken(t *testing.T) {
	c, rec := setup(t, Staff, nil)
	_, err := c.Load(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, api.ErrValidation)
	_, err = c.Import(context.Background(), "a@b.com", writeFile(t, "t.pb", 1))
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Empty(t, rec.calls())
}

func TestSelfServiceHasNoOperationsEndpoint(t *testing.T) {
	c, rec := setup(t, SelfService, nil, WithToken("tok"))
	_, err := c.Copy(context.Background(), "a@b.com", "c@d.com")
	assert.Error(t, err)
	assert.Empty(t, rec.calls())
}

func TestExportWritesEmailNamedFile(t *testing.T) {
	c, _ := setup(t, Staff, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/export_town", r.URL.Path)
		assert.Equal(t, "a@b.com", r.URL.Query().Get("target_user"))
		w.Header().Set("Content-Disposition", `attachment; filename="a@b.com.pb"`)
		_, _ = w.Write([]byte("TOWNDATA"))
	})
	dir := t.TempDir()

	path, err := c.Export(context.Background(), "a@b.com", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a@b.com.pb"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TOWNDATA", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestExportFailureLeavesNoFile(t *testing.T) {
	c, _ := setup(t, SelfService, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"No town found"}`))
	})
	dir := t.TempDir()

	_, err := c.Export(context.Background(), "a@b.com", dir)
	assert.True(t, api.IsNotFound(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	ctx := context.Background()

	c, rec := setup(t, Staff, nil, WithConfirmer(prompt.Always(false)))
	assert.ErrorIs(t, c.Delete(ctx, "a@b.com"), prompt.ErrNotConfirmed)
	assert.Empty(t, rec.calls())

	c, rec = setup(t, Staff, nil)
	assert.ErrorIs(t, c.Delete(ctx, "a@b.com"), prompt.ErrNotConfirmed)
	assert.Empty(t, rec.calls())

	c, rec = setup(t, Staff, nil, WithConfirmer(prompt.Always(true)))
	require.NoError(t, c.Delete(ctx, "a@b.com"))
	assert.Equal(t, []string{"POST /api/admin/delete_town"}, rec.calls())
}

type askedConfirmer struct{ q prompt.Question }

func (a *askedConfirmer) Confirm(q prompt.Question) (bool, error) {
	a.q = q
	return true, nil
}

func TestSelfServiceDeleteAsksForTypedWord(t *testing.T) {
	conf := &askedConfirmer{}
	c, rec := setup(t, SelfService, nil, WithConfirmer(conf))

	require.NoError(t, c.Delete(context.Background(), "me@x.com"))
	assert.Equal(t, "DELETE", conf.q.Typed)
	assert.Equal(t, []string{"POST /api/public/delete_town"}, rec.calls())
}

func TestOperationsAreAudited(t *testing.T) {
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	store := audit.NewStore(database)
	ctx := context.Background()

	c, _ := setup(t, Staff, nil, WithConfirmer(prompt.Always(false)), WithAudit(store, "admin"), WithToken("tok"))
	_, err = c.Load(ctx, "a@b.com")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Delete(ctx, "a@b.com"), prompt.ErrNotConfirmed)

	entries, err := store.Query(ctx, audit.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byAction := map[audit.Action]audit.Entry{}
	for _, e := range entries {
		byAction[e.Action] = e
	}
	assert.Equal(t, audit.OutcomeOK, byAction[audit.ActionTownLoad].Outcome)
	assert.Equal(t, audit.OutcomeCancelled, byAction[audit.ActionTownDelete].Outcome)
	assert.Equal(t, "admin", byAction[audit.ActionTownLoad].Actor)
	assert.Equal(t, "staff", byAction[audit.ActionTownLoad].Surface)
}

func TestSubmitDefaultsTownName(t *testing.T) {
	var name string
	c, _ := setup(t, PublicSubmission, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		name = r.FormValue("town_name")
		assert.Equal(t, "homer@example.com", r.FormValue("email"))
		_, _ = w.Write([]byte(`{"success":true,"id":12}`))
	})

	id, err := c.Submit(context.Background(), Submission{Email: "homer@example.com", Path: writeFile(t, "t.pb", 64)})
	require.NoError(t, err)
	assert.Equal(t, "12", id)
	assert.Equal(t, "homer's Town", name)
}

func TestPendingFiltersReviewed(t *testing.T) {
	c, _ := setup(t, Staff, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"towns":[
			{"id":1,"status":"pending"},
			{"id":2,"status":"approved"},
			{"id":3,"status":"rejected"},
			{"id":4}
		]}`))
	})
	towns, err := c.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, towns, 2)
	assert.Equal(t, "1", towns[0].ID.String())
	assert.Equal(t, "4", towns[1].ID.String())
}

func TestRejectNeedsConfirmation(t *testing.T) {
	c, rec := setup(t, Staff, nil, WithConfirmer(prompt.Always(false)))
	err := c.Reject(context.Background(), "9", "bad file")
	assert.True(t, errors.Is(err, prompt.ErrNotConfirmed))
	assert.Empty(t, rec.calls())
}

func TestImportBatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a@b.com.pb"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mytown.pb"), []byte("x"), 0o644))

	c, rec := setup(t, Staff, nil)
	paths, err := SelectFiles(dir, "")
	require.NoError(t, err)

	results := c.ImportBatch(context.Background(), paths)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "a@b.com", results[0].Email)
	assert.ErrorIs(t, results[1].Err, api.ErrValidation)
	assert.Equal(t, []string{"POST /api/admin/import_town"}, rec.calls())
}
