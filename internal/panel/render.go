package panel

import (
	"bytes"
	"html/template"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/towns"
)

// Pages are rendered by pure functions of their page state. Handlers
// gather the state; nothing here talks to the network.

// Prefs are the display preferences stored in the local state database.
type Prefs struct {
	Dark     bool
	Advanced bool
}

// LoginPage is the state of the login form.
type LoginPage struct {
	Prefs
	// Actor stays empty; the layout hides the navigation without it.
	Actor    string
	Next     string
	Username string
	Error    string
}

// DashboardPage is the state of the dashboard.
type DashboardPage struct {
	Prefs
	Actor    string
	Data     *api.DashboardData
	Schedule []api.EventEntry
	Users    int
	UsersErr string
	Players  string
	Uptime   string
	Degraded bool
}

// UsersPage is the state of the user search grid.
type UsersPage struct {
	Prefs
	Actor   string
	Public  bool
	Fields  []string
	Field   string
	Term    string
	Message string
	Columns []string
	Rows    []UserRow
}

// UserRow is one rendered grid row.
type UserRow struct {
	Email string
	Cells []string
}

// PendingPage is the state of the moderation queue.
type PendingPage struct {
	Prefs
	Actor string
	Towns []PendingRow
	Error string
}

// PendingRow is one submission with its description rendered.
type PendingRow struct {
	api.PendingTown
	Size        string
	When        string
	Description template.HTML
}

// SavePage is the state of the save viewer. The text is split around the
// selected match so the page can highlight it.
type SavePage struct {
	Prefs
	Actor    string
	Username string
	Legacy   bool
	Find     string
	Error    string
	Loaded   bool
	Text     string
	Found    bool
	Match    dashboard.Match
	Ordinal  int
	Before   string
	Hit      string
	After    string
	PrevURL  string
	NextURL  string
}

var templates = template.Must(template.New("layout").Parse(layoutTemplate))

func init() {
	template.Must(templates.New("login").Parse(loginTemplate))
	template.Must(templates.New("dashboard").Parse(dashboardTemplate))
	template.Must(templates.New("users").Parse(usersTemplate))
	template.Must(templates.New("pending").Parse(pendingTemplate))
	template.Must(templates.New("save").Parse(saveTemplate))
}

// RenderLogin writes the login page.
func RenderLogin(w io.Writer, p LoginPage) error {
	return templates.ExecuteTemplate(w, "login", p)
}

// RenderDashboard writes the dashboard page.
func RenderDashboard(w io.Writer, p DashboardPage) error {
	return templates.ExecuteTemplate(w, "dashboard", p)
}

// RenderUsers writes the user search page.
func RenderUsers(w io.Writer, p UsersPage) error {
	return templates.ExecuteTemplate(w, "users", p)
}

// RenderPending writes the moderation queue.
func RenderPending(w io.Writer, p PendingPage) error {
	return templates.ExecuteTemplate(w, "pending", p)
}

// RenderSave writes the save viewer.
func RenderSave(w io.Writer, p SavePage) error {
	return templates.ExecuteTemplate(w, "save", p)
}

// showMatch fills p from v with match i selected.
func showMatch(p *SavePage, v *dashboard.SaveView, i int) {
	p.Loaded, p.Text = true, v.Text
	if _, ok := v.Search(p.Find); !ok {
		return
	}
	m, _ := v.Seek(i)
	p.Found, p.Match, p.Ordinal = true, m, m.Index+1
	p.Before = v.Text[:m.Offset]
	p.Hit = v.Text[m.Offset : m.Offset+m.Length]
	p.After = v.Text[m.Offset+m.Length:]
	p.PrevURL = saveURL(p, (m.Index-1+m.Total)%m.Total)
	p.NextURL = saveURL(p, (m.Index+1)%m.Total)
}

func saveURL(p *SavePage, i int) string {
	q := url.Values{"email": {p.Username}, "find": {p.Find}, "i": {strconv.Itoa(i)}}
	if p.Legacy {
		q.Set("legacy", "1")
	}
	return "/save?" + q.Encode() + "#match"
}

// markdown renders submission descriptions. goldmark drops raw HTML unless
// told otherwise, so submitter-supplied markup never reaches the page.
var markdown = goldmark.New()

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func pendingRows(list []api.PendingTown) []PendingRow {
	out := make([]PendingRow, 0, len(list))
	for _, t := range list {
		row := PendingRow{PendingTown: t, Description: renderMarkdown(t.Description)}
		if t.FileSize > 0 {
			row.Size = towns.FormatSize(t.FileSize)
		}
		if ts := t.Submitted(); !ts.IsZero() {
			row.When = ts.Format("2006-01-02 15:04")
		}
		out = append(out, row)
	}
	return out
}

var gameColumns = []string{"Email", "User ID", "Display name", "Town", "Device", "Client IP"}

// Advanced mode adds the device identity columns.
var advancedGameColumns = append(append([]string(nil), gameColumns...), "Mayhem ID", "Platform", "Manufacturer", "Model")

func gameColumnsFor(advanced bool) []string {
	if advanced {
		return advancedGameColumns
	}
	return gameColumns
}

func gameRows(users []api.User, advanced bool) []UserRow {
	out := make([]UserRow, 0, len(users))
	for _, u := range users {
		cells := []string{u.Email, u.UserID, u.DisplayName, u.TownName, u.DeviceID, u.ClientIP}
		if advanced {
			cells = append(cells, u.MayhemID, u.PlatformID, u.Manufacturer, u.Model)
		}
		out = append(out, UserRow{Email: u.Email, Cells: cells})
	}
	return out
}

var publicColumns = []string{"Email", "Display name", "TSTO email", "Verified", "Locked", "Last login"}

func publicRows(users []api.PublicUser) []UserRow {
	out := make([]UserRow, 0, len(users))
	for _, u := range users {
		last := ""
		if u.LastLogin > 0 {
			last = time.Unix(u.LastLogin, 0).Format("2006-01-02 15:04")
		}
		out = append(out, UserRow{Email: u.Email, Cells: []string{
			u.Email, u.DisplayName, u.TSTOEmail,
			yesNo(u.IsVerified), yesNo(u.AccountLocked), last,
		}})
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
