package grid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/db"
	"github.com/springfield-ops/townctl/internal/prompt"
	"github.com/springfield-ops/townctl/internal/state"
)

type hits struct {
	mu   sync.Mutex
	reqs []string
}

func (h *hits) add(r *http.Request) {
	h.mu.Lock()
	h.reqs = append(h.reqs, r.Method+" "+r.URL.RequestURI())
	h.mu.Unlock()
}

func (h *hits) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reqs...)
}

func backend(t *testing.T, body string) (*api.Client, *hits) {
	t.Helper()
	h := &hits{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.add(r)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL)
	require.NoError(t, err)
	return c, h
}

func TestSearchEmptyTermSendsNothing(t *testing.T) {
	c, h := backend(t, `{"success":true,"users":[]}`)
	g := New[api.User](GameDirectory{API: c})

	_, err := g.Search(context.Background(), "email", "   ")
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Empty(t, h.all())
	assert.Equal(t, "Please enter a search term", g.View().Message)
}

func TestSearchPopulatesView(t *testing.T) {
	c, _ := backend(t, `{"success":true,"users":[{"email":"a@b.com"},{"email":"c@d.com"}]}`)
	g := New[api.User](GameDirectory{API: c})

	rows, err := g.Search(context.Background(), "", "a")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	v := g.View()
	assert.Equal(t, "email", v.Field)
	assert.Equal(t, "a", v.Term)
	assert.Equal(t, "Found 2 users", v.Message)
}

func TestDeleteUserConfirmation(t *testing.T) {
	ctx := context.Background()

	c, h := backend(t, `{"success":true}`)
	g := New[api.User](GameDirectory{API: c}, WithConfirmer(prompt.Always(false)))
	assert.ErrorIs(t, g.Delete(ctx, "a@b.com"), prompt.ErrNotConfirmed)
	assert.Empty(t, h.all())

	c, h = backend(t, `{"success":true}`)
	g = New[api.User](GameDirectory{API: c}, WithConfirmer(prompt.Always(true)))
	require.NoError(t, g.Delete(ctx, "a@b.com"))
	assert.Equal(t, []string{"DELETE /api/delete-user?email=a%40b.com"}, h.all())
}

func TestDeletePublicUserPosts(t *testing.T) {
	c, h := backend(t, `{"success":true}`)
	g := New[api.PublicUser](PublicDirectory{API: c}, WithConfirmer(prompt.Always(true)))
	require.NoError(t, g.Delete(context.Background(), "a@b.com"))
	assert.Equal(t, []string{"POST /api/delete-public-user"}, h.all())
}

// blockingSource answers searches for "slow" only after its context is
// cancelled, so a later search can overtake it.
type blockingSource struct {
	started chan struct{}
}

type row struct{ Email string }

func (r row) Key() string { return r.Email }

func (blockingSource) Name() string     { return "rows" }
func (blockingSource) Fields() []string { return []string{"email"} }

func (s blockingSource) Search(ctx context.Context, field, term string) ([]row, error) {
	if term == "slow" {
		close(s.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []row{{Email: term}}, nil
}

func (blockingSource) List(context.Context) ([]row, error)       { return nil, nil }
func (blockingSource) Get(context.Context, string) (*row, error) { return nil, errors.New("unused") }
func (blockingSource) Update(context.Context, row) error          { return nil }
func (blockingSource) Delete(context.Context, string) error       { return nil }

func TestNewerSearchSupersedesInFlight(t *testing.T) {
	src := blockingSource{started: make(chan struct{})}
	g := New[row](src)

	errc := make(chan error, 1)
	go func() {
		_, err := g.Search(context.Background(), "email", "slow")
		errc <- err
	}()
	<-src.started

	rows, err := g.Search(context.Background(), "email", "fast@x.com")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	v := g.View()
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "fast@x.com", v.Rows[0].Email)
}

func TestSaveRefreshesRow(t *testing.T) {
	c, _ := backend(t, `{"success":true,"users":[{"email":"a@b.com","display_name":"Old"}]}`)
	g := New[api.User](GameDirectory{API: c})
	ctx := context.Background()

	_, err := g.All(ctx)
	require.NoError(t, err)
	require.NoError(t, g.Save(ctx, api.User{Email: "a@b.com", DisplayName: "New"}))
	assert.Equal(t, "New", g.View().Rows[0].DisplayName)
}

func TestEditsLeaveEarlierResultsAlone(t *testing.T) {
	c, _ := backend(t, `{"success":true,"users":[{"email":"a@b.com","display_name":"A"},{"email":"c@d.com","display_name":"C"}]}`)
	g := New[api.User](GameDirectory{API: c}, WithConfirmer(prompt.Always(true)))
	ctx := context.Background()

	held, err := g.Search(ctx, "email", "@")
	require.NoError(t, err)
	before := g.View().Rows

	require.NoError(t, g.Save(ctx, api.User{Email: "c@d.com", DisplayName: "Changed"}))
	require.NoError(t, g.Delete(ctx, "a@b.com"))

	require.Len(t, held, 2)
	assert.Equal(t, "a@b.com", held[0].Email)
	assert.Equal(t, "C", held[1].DisplayName)
	require.Len(t, before, 2)
	assert.Equal(t, "C", before[1].DisplayName)

	v := g.View()
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "Changed", v.Rows[0].DisplayName)
}

type openedURL struct{ url string }

func (o *openedURL) Open(url string) error {
	o.url = url
	return nil
}

func TestViewAsWritesPublicSlots(t *testing.T) {
	c, _ := backend(t, `{"success":true,"email":"a@b.com","token":"admin_view_99","is_admin_view":true}`)
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	st := state.NewStore(database)
	ctx := context.Background()

	require.NoError(t, st.SavePublicSession(ctx, state.PublicSession{Email: "me@x.com", Token: "mine", DisplayName: "Me"}))

	opener := &openedURL{}
	im := &Impersonator{Granter: c, State: st, Opener: opener, Dashboard: "http://panel/public"}
	require.NoError(t, im.ViewAs(ctx, "a@b.com"))

	sess, ok := st.PublicSession(ctx)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", sess.Email)
	assert.Equal(t, "admin_view_99", sess.Token)
	assert.Empty(t, sess.DisplayName)
	assert.Equal(t, "http://panel/public?token=admin_view_99&view_as_user=a%40b.com", opener.url)
}

func TestDashboardURLKeepsExistingQuery(t *testing.T) {
	got, err := DashboardURL("https://portal.example.com/d?lang=en", &api.ViewGrant{Email: "x@y.z", Token: "t 1"})
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/d?lang=en&token=t+1&view_as_user=x%40y.z", got)
}
