package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Text is a JSON scalar read as a string. The dashboard endpoints mix
// numbers, strings and unsubstituted template tokens for the same field.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

func (t Text) String() string { return string(t) }

// Int parses t as an integer, returning ok=false when it is not a number.
// A fractional value is truncated toward zero.
func (t Text) Int() (int64, bool) {
	s := strings.TrimSpace(string(t))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// DashboardData is the aggregate state behind the admin dashboard.
type DashboardData struct {
	ServerIP              Text            `json:"server_ip"`
	GamePort              Text            `json:"game_port"`
	DLCDirectory          Text            `json:"dlc_directory"`
	BackupDirectory       Text            `json:"backup_directory"`
	BackupIntervalHours   Text            `json:"backup_interval_hours"`
	BackupIntervalSeconds Text            `json:"backup_interval_seconds"`
	APIEnabled            bool            `json:"api_enabled"`
	APIKey                Text            `json:"api_key"`
	TeamName              Text            `json:"team_name"`
	RequireCode           bool            `json:"require_code"`
	UseLegacyMode         bool            `json:"use_legacy_mode"`
	DisableAnonymousUsers bool            `json:"disable_anonymous_users"`
	UniqueClients         *int            `json:"unique_clients"`
	ActiveConnections     *int            `json:"active_connections"`
	CurrentEvent          Text            `json:"current_event"`
	CurrentEventTime      int64           `json:"current_event_time"`
	Events                map[string]Text `json:"events"`
	Uptime                Text            `json:"uptime"`
}

// EventEntry is one row of the event schedule. Time 0 is normal play.
type EventEntry struct {
	Time    int64
	Name    string
	Current bool
}

// Schedule returns the event schedule sorted by time, marking the current
// entry. Keys that are not integers are skipped.
func (d *DashboardData) Schedule() []EventEntry {
	out := make([]EventEntry, 0, len(d.Events))
	for k, name := range d.Events {
		t, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, EventEntry{Time: t, Name: name.String(), Current: t == d.CurrentEventTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Players returns the active player count, preferring unique clients over
// raw connections. ok is false when the server reports neither.
func (d *DashboardData) Players() (n int, ok bool) {
	switch {
	case d.UniqueClients != nil:
		return *d.UniqueClients, true
	case d.ActiveConnections != nil:
		return *d.ActiveConnections, true
	}
	return 0, false
}

// DashboardData fetches the aggregate dashboard state.
func (c *Client) DashboardData(ctx context.Context) (*DashboardData, error) {
	var out DashboardData
	if err := c.do(ctx, "dashboard data", http.MethodGet, "/api/dashboard/data", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivePlayers fetches the current active player count.
func (c *Client) ActivePlayers(ctx context.Context) (int, error) {
	d, err := c.DashboardData(ctx)
	if err != nil {
		return 0, err
	}
	n, ok := d.Players()
	if !ok {
		return 0, &AppError{Op: "active players", Message: "server did not report a player count"}
	}
	return n, nil
}

// BackupSettings is the backup group of the dashboard config.
type BackupSettings struct {
	BackupDirectory       string `json:"backupDirectory"`
	BackupIntervalHours   int    `json:"backupIntervalHours"`
	BackupIntervalSeconds int    `json:"backupIntervalSeconds"`
}

// APISettings is the api group of the dashboard config.
type APISettings struct {
	APIEnabled  bool   `json:"apiEnabled"`
	APIKey      string `json:"apiKey"`
	TeamName    string `json:"teamName,omitempty"`
	RequireCode bool   `json:"requireCode"`
}

// LandSettings is the land group of the dashboard config.
type LandSettings struct {
	UseLegacyMode bool `json:"useLegacyMode"`
}

// SecuritySettings is the security group of the dashboard config.
type SecuritySettings struct {
	DisableAnonymousUsers bool `json:"disableAnonymousUsers"`
}

// DashboardConfig groups the editable server settings.
type DashboardConfig struct {
	Backup   BackupSettings   `json:"backup"`
	API      APISettings      `json:"api"`
	Land     LandSettings     `json:"land"`
	Security SecuritySettings `json:"security"`
}

// DashboardConfig fetches the editable server settings.
func (c *Client) DashboardConfig(ctx context.Context) (*DashboardConfig, error) {
	var out struct {
		Config *DashboardConfig `json:"config"`
	}
	if err := c.do(ctx, "dashboard config", http.MethodGet, "/api/dashboard/config", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Config == nil {
		return nil, &AppError{Op: "dashboard config", Message: "server returned no configuration"}
	}
	return out.Config, nil
}

// Each settings group is posted on its own; the server merges it into the
// stored configuration.
func (c *Client) updateConfig(ctx context.Context, op string, group any) error {
	return c.do(ctx, op, http.MethodPost, "/api/dashboard/config", nil, group, nil)
}

// UpdateBackupSettings writes the backup group.
func (c *Client) UpdateBackupSettings(ctx context.Context, s BackupSettings) error {
	if strings.TrimSpace(s.BackupDirectory) == "" {
		return Invalid("backupDirectory", "is required")
	}
	if s.BackupIntervalHours < 0 || s.BackupIntervalSeconds < 0 {
		return Invalid("backupInterval", "cannot be negative")
	}
	return c.updateConfig(ctx, "update backup settings", s)
}

// UpdateAPISettings writes the api group.
func (c *Client) UpdateAPISettings(ctx context.Context, s APISettings) error {
	if s.APIEnabled && strings.TrimSpace(s.APIKey) == "" {
		return Invalid("apiKey", "is required when the API is enabled")
	}
	return c.updateConfig(ctx, "update api settings", s)
}

// UpdateLandSettings writes the land group.
func (c *Client) UpdateLandSettings(ctx context.Context, s LandSettings) error {
	return c.updateConfig(ctx, "update land settings", s)
}

// UpdateSecuritySettings writes the security group.
func (c *Client) UpdateSecuritySettings(ctx context.Context, s SecuritySettings) error {
	return c.updateConfig(ctx, "update security settings", s)
}

// UpdateInitialDonuts sets the balance new accounts start with.
func (c *Client) UpdateInitialDonuts(ctx context.Context, donuts int) error {
	if donuts < 0 || donuts > MaxDonuts {
		return Invalid("initialDonuts", "out of range")
	}
	return c.do(ctx, "update initial donuts", http.MethodPost, "/api/update_initial_donuts", nil,
		map[string]int{"initialDonuts": donuts}, nil)
}

// UpdateServerIP changes the address the game server advertises.
func (c *Client) UpdateServerIP(ctx context.Context, ip string) error {
	if strings.TrimSpace(ip) == "" {
		return Invalid("serverIp", "is required")
	}
	return c.do(ctx, "update server ip", http.MethodPost, "/api/updateServerIp", nil,
		map[string]string{"serverIp": ip}, nil)
}

// UpdateServerPort changes the game port.
func (c *Client) UpdateServerPort(ctx context.Context, port int) error {
	if port < 1 || port > 65535 {
		return Invalid("serverPort", "must be between 1 and 65535")
	}
	return c.do(ctx, "update server port", http.MethodPost, "/api/updateServerPort", nil,
		map[string]int{"serverPort": port}, nil)
}

// UpdateDLCDirectory changes the directory DLC content is served from.
func (c *Client) UpdateDLCDirectory(ctx context.Context, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return Invalid("directory", "is required")
	}
	return c.do(ctx, "update dlc directory", http.MethodPost, "/api/update_dlc_directory", nil,
		map[string]string{"directory": dir}, nil)
}

// EventChange is the server's acknowledgement of an event change.
type EventChange struct {
	CurrentEvent string `json:"current_event"`
}

// SetEvent makes the event keyed by eventTime current. 0 is normal play.
func (c *Client) SetEvent(ctx context.Context, eventTime int64) (*EventChange, error) {
	if eventTime < 0 {
		return nil, Invalid("event_time", "cannot be negative")
	}
	var out EventChange
	err := c.do(ctx, "set event", http.MethodPost, "/api/events/set", nil,
		map[string]int64{"event_time": eventTime}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdjustEventTime shifts the event clock by minutes, which may be negative.
func (c *Client) AdjustEventTime(ctx context.Context, minutes int) error {
	if minutes == 0 {
		return Invalid("minutes_offset", "must not be zero")
	}
	return c.do(ctx, "adjust event time", http.MethodPost, "/api/events/adjust_time", nil,
		map[string]int{"minutes_offset": minutes}, nil)
}

// ResetEventTime puts the event clock back to the current time.
func (c *Client) ResetEventTime(ctx context.Context) error {
	return c.do(ctx, "reset event time", http.MethodPost, "/api/events/reset_time", nil, struct{}{}, nil)
}

// EventStatus summarises the current event.
type EventStatus struct {
	CurrentTime time.Time
	EventTime   int64
	EventName   string
	Active      bool
}

// EventStatus reports which event is current, derived from the dashboard
// data.
func (c *Client) EventStatus(ctx context.Context) (*EventStatus, error) {
	d, err := c.DashboardData(ctx)
	if err != nil {
		return nil, err
	}
	st := &EventStatus{
		CurrentTime: c.now(),
		EventTime:   d.CurrentEventTime,
		EventName:   d.CurrentEvent.String(),
		Active:      d.CurrentEventTime != 0,
	}
	if st.EventName == "" {
		for _, e := range d.Schedule() {
			if e.Current {
				st.EventName = e.Name
			}
		}
	}
	return st, nil
}

// RestartServer asks the game server to restart and returns its message.
func (c *Client) RestartServer(ctx context.Context) (string, error) {
	var out Result
	if err := c.do(ctx, "restart server", http.MethodPost, "/api/server/restart", nil, struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// StopServer asks the game server to stop and returns its message.
func (c *Client) StopServer(ctx context.Context) (string, error) {
	var out Result
	if err := c.do(ctx, "stop server", http.MethodPost, "/api/server/stop", nil, struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ForceSave asks the game server to persist the loaded town immediately.
func (c *Client) ForceSave(ctx context.Context) error {
	return c.do(ctx, "force save", http.MethodPost, "/api/forceSaveProtoland", nil, nil, nil)
}

// Uptime fetches how long the game server has been running.
func (c *Client) Uptime(ctx context.Context) (time.Duration, error) {
	var out struct {
		Uptime Text `json:"uptime"`
	}
	if err := c.do(ctx, "uptime", http.MethodGet, "/api/server/uptime", nil, nil, &out); err != nil {
		return 0, err
	}
	secs, ok := out.Uptime.Int()
	if !ok || secs < 0 {
		return 0, &AppError{Op: "uptime", Message: fmt.Sprintf("unexpected uptime %q", out.Uptime)}
	}
	return time.Duration(secs) * time.Second, nil
}

// FormatUptime renders d as "[Nd ]HH:MM:SS".
func FormatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	h := (secs % 86400) / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
