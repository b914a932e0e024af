package panel

const layoutTemplate = `{{define "header"}}<!DOCTYPE html>
<html lang="en" data-theme="{{if .Dark}}dark{{else}}light{{end}}">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>TSTO Server Panel</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; background: #f4f6f8; color: #222; }
    nav { background: #1d3557; padding: .6rem 1rem; display: flex; gap: 1rem; align-items: center; }
    nav a { color: #fff; text-decoration: none; }
    nav .who { margin-left: auto; color: #cfd8e3; }
    main { padding: 1rem; max-width: 1100px; margin: auto; }
    .card { background: #fff; border-radius: 6px; padding: 1rem; margin-bottom: 1rem; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: .35rem .5rem; border-bottom: 1px solid #e5e8eb; }
    tr.current { background: #e8f4ea; }
    .error { color: #b00020; }
    .muted { color: #777; }
    [data-theme=dark] body { background: #15181c; color: #dde1e6; }
    [data-theme=dark] .card { background: #22272e; box-shadow: none; }
    [data-theme=dark] th, [data-theme=dark] td { border-bottom-color: #373e47; }
    [data-theme=dark] tr.current { background: #1f3a28; }
    pre.save { white-space: pre-wrap; max-height: 70vh; overflow: auto; }
  </style>
</head>
<body>
{{if .Actor}}<nav>
  <a href="/">Dashboard</a>
  <a href="/users">Users</a>
  <a href="/users?public=1">Public users</a>
  <a href="/pending">Pending towns</a>
  <a href="/save">Saves</a>
  <span class="who">
    <a href="#" onclick="act('/panel/api/prefs', {pref: 'dark'}); return false">{{if .Dark}}Light{{else}}Dark{{end}} mode</a> ·
    <a href="#" onclick="act('/panel/api/prefs', {pref: 'advanced'}); return false">{{if .Advanced}}Basic{{else}}Advanced{{end}} view</a> ·
    {{.Actor}} · <a href="/logout">Log out</a>
  </span>
</nav>{{end}}
<main>
{{end}}

{{define "footer"}}</main>
<script>
async function act(path, fields, question) {
  if (question && !window.confirm(question)) { return; }
  const body = new URLSearchParams(fields || {});
  body.set("confirm", "yes");
  const res = await fetch(path, { method: "POST", body: body, credentials: "same-origin" });
  const out = await res.json().catch(() => ({}));
  if (!res.ok || out.success === false) {
    window.alert(out.error || ("Request failed: " + res.status));
    return;
  }
  if (out.redirect) { window.open(out.redirect, "_blank"); return; }
  if (out.message) { window.alert(out.message); }
  window.location.reload();
}
</script>
</body>
</html>{{end}}`

const loginTemplate = `{{template "header" .}}
<div class="card">
  <h2>Staff login</h2>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <form method="post" action="/login">
    <input type="hidden" name="next" value="{{.Next}}">
    <p><label>Username <input name="username" value="{{.Username}}" required autofocus></label></p>
    <p><label>Password <input name="password" type="password" required></label></p>
    <p><button type="submit">Log in</button></p>
  </form>
</div>
{{template "footer" .}}`

const dashboardTemplate = `{{template "header" .}}
{{if .Degraded}}<p class="muted">Session could not be verified with the server; showing cached access.</p>{{end}}
<div class="card">
  <h2>Server</h2>
  <table>
    <tr><th>Address</th><td>{{.Data.ServerIP}}:{{.Data.GamePort}}</td></tr>
    <tr><th>DLC directory</th><td>{{.Data.DLCDirectory}}</td></tr>
    <tr><th>Active players</th><td id="players">{{.Players}}</td></tr>
    <tr><th>Uptime</th><td id="uptime">{{.Uptime}}</td></tr>
    <tr><th>Registered users</th><td>{{if .UsersErr}}<span class="error">{{.UsersErr}}</span>{{else}}{{.Users}}{{end}}</td></tr>
  </table>
  <p>
    <button onclick="act('/panel/api/server/restart', {}, 'Are you sure you want to restart the server?')">Restart</button>
    <button onclick="act('/panel/api/server/stop', {}, 'Are you sure you want to stop the server?')">Stop</button>
  </p>
</div>
<div class="card">
  <h2>Event: {{.Data.CurrentEvent}}</h2>
  <table>
    <tr><th>Time</th><th>Event</th><th></th></tr>
    {{range .Schedule}}<tr{{if .Current}} class="current"{{end}}>
      <td>{{.Time}}</td><td>{{.Name}}</td>
      <td>{{if not .Current}}<button onclick="act('/panel/api/event', {time: '{{.Time}}', name: '{{.Name}}'}, 'Change the current event to {{.Name}}?')">Set</button>{{end}}</td>
    </tr>{{end}}
  </table>
  <p>
    <button onclick="act('/panel/api/event/adjust', {minutes: '-60'}, 'Adjust the event time by -60 minutes?')">-1h</button>
    <button onclick="act('/panel/api/event/adjust', {minutes: '60'}, 'Adjust the event time by +60 minutes?')">+1h</button>
    <button onclick="act('/panel/api/event/reset', {}, 'Reset the event time to the current time?')">Reset</button>
  </p>
</div>
<div class="card">
  <h2>Backups</h2>
  <p>{{.Data.BackupDirectory}} every {{.Data.BackupIntervalHours}}h</p>
  <h2>Initial donuts</h2>
  <form onsubmit="event.preventDefault(); act('/panel/api/settings/donuts', {donuts: this.donuts.value});">
    <input name="donuts" inputmode="numeric"> <button type="submit">Save</button>
  </form>
</div>
<script>
(function () {
  const proto = window.location.protocol === "https:" ? "wss:" : "ws:";
  const ws = new WebSocket(proto + "//" + window.location.host + "/ws/live");
  ws.onmessage = function (ev) {
    const live = JSON.parse(ev.data);
    document.getElementById("players").textContent = live.players;
    document.getElementById("uptime").textContent = live.uptime;
  };
})();
</script>
{{template "footer" .}}`

const usersTemplate = `{{template "header" .}}
<div class="card">
  <h2>{{if .Public}}Public users{{else}}Users{{end}}</h2>
  <form method="get" action="/users">
    {{if .Public}}<input type="hidden" name="public" value="1">{{end}}
    <select name="field">{{range .Fields}}<option{{if eq . $.Field}} selected{{end}}>{{.}}</option>{{end}}</select>
    <input name="term" value="{{.Term}}" placeholder="Search...">
    <button type="submit">Search</button>
    <a href="/users?all=1{{if .Public}}&public=1{{end}}">Show all</a>
  </form>
  {{if .Message}}<p class="muted">{{.Message}}</p>{{end}}
  {{if .Rows}}<table>
    <tr>{{range .Columns}}<th>{{.}}</th>{{end}}<th></th></tr>
    {{range .Rows}}<tr>
      {{range .Cells}}<td>{{.}}</td>{{end}}
      <td>
        <button onclick="act('/panel/api/users/view-as', {email: '{{.Email}}'}, 'View the dashboard as {{.Email}}?')">View as</button>
        {{if not $.Public}}<a href="/save?email={{.Email}}">Save</a>{{end}}
        <button onclick="act('/panel/api/users/delete', {email: '{{.Email}}'{{if $.Public}}, public: '1'{{end}}}, 'Delete {{.Email}}? This cannot be undone.')">Delete</button>
      </td>
    </tr>{{end}}
  </table>{{end}}
</div>
{{template "footer" .}}`

const pendingTemplate = `{{template "header" .}}
<div class="card">
  <h2>Pending towns</h2>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{range .Towns}}<div class="card">
    <h3>{{.TownName}}</h3>
    <p class="muted">{{.Email}}{{if .Size}} · {{.Size}}{{end}}{{if .When}} · {{.When}}{{end}}</p>
    <div>{{.Description}}</div>
    <p>
      <button onclick="act('/panel/api/pending/{{.ID}}/approve', {target_email: window.prompt('Install for (blank for submitter):', '') || ''})">Approve</button>
      <button onclick="act('/panel/api/pending/{{.ID}}/reject', {reason: window.prompt('Reason (optional):', '') || ''}, 'Reject {{.TownName}}?')">Reject</button>
    </p>
  </div>{{else}}<p class="muted">No towns are waiting for review.</p>{{end}}
</div>
{{template "footer" .}}`

const saveTemplate = `{{template "header" .}}
<div class="card">
  <h2>Save viewer</h2>
  <form method="get" action="/save">
    <input name="email" value="{{.Username}}" placeholder="User email" required>
    <label><input type="checkbox" name="legacy" value="1"{{if .Legacy}} checked{{end}}> Legacy town</label>
    <input name="find" value="{{.Find}}" placeholder="Find in save...">
    <button type="submit">Load</button>
  </form>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  {{if .Found}}<p class="muted">Match {{.Ordinal}} of {{.Match.Total}} at line {{.Match.Line}}, column {{.Match.Column}}
    · <a href="{{.PrevURL}}">Previous</a> · <a href="{{.NextURL}}">Next</a></p>
  {{else if and .Loaded .Find}}<p class="muted">No matches for "{{.Find}}".</p>{{end}}
</div>
{{if .Loaded}}<div class="card"><pre class="save">{{if .Found}}{{.Before}}<mark id="match">{{.Hit}}</mark>{{.After}}{{else}}{{.Text}}{{end}}</pre></div>{{end}}
{{template "footer" .}}`
