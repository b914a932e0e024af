package api

import (
	"context"
	"net/http"
	"net/url"
)

// User is a record of the game directory. Every field is sent back on
// update, so unknown values must round-trip untouched.
type User struct {
	Email         string `json:"email"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	AccessToken   string `json:"access_token"`
	AccessCode    string `json:"access_code"`
	SessionKey    string `json:"session_key"`
	DeviceID      string `json:"device_id"`
	AndroidID     string `json:"android_id"`
	VendorID      string `json:"vendor_id"`
	AdvertisingID string `json:"advertising_id"`
	PlatformID    string `json:"platform_id"`
	MayhemID      string `json:"mayhem_id"`
	AnonUID       string `json:"anon_uid"`
	ASIdentifier  string `json:"as_identifier"`
	CombinedID    string `json:"combined_id"`
	LandToken     string `json:"land_token"`
	LnglvToken    string `json:"lnglv_token"`
	LandSavePath  string `json:"land_save_path"`
	UserCred      string `json:"user_cred"`
	Manufacturer  string `json:"manufacturer"`
	Model         string `json:"model"`
	ClientIP      string `json:"client_ip"`
	TownName      string `json:"town_name"`
}

// Key returns the record's email.
func (u User) Key() string { return u.Email }

// PublicUser is a record of the public (self-service) directory.
type PublicUser struct {
	Email               string `json:"email"`
	DisplayName         string `json:"display_name,omitempty"`
	TSTOEmail           string `json:"tsto_email,omitempty"`
	IsVerified          bool   `json:"is_verified"`
	FailedLoginAttempts int    `json:"failed_login_attempts"`
	AccountLocked       bool   `json:"account_locked"`
	RegistrationDate    int64  `json:"registration_date,omitempty"`
	LastLogin           int64  `json:"last_login,omitempty"`
}

// Key returns the record's email.
func (u PublicUser) Key() string { return u.Email }

// SearchFields lists the game directory fields the server can search on.
var SearchFields = []string{"email", "user_id", "display_name", "device_id", "town_name", "mayhem_id", "client_ip"}

// PublicSearchFields lists the public directory fields the server can
// search on.
var PublicSearchFields = []string{"email", "display_name", "tsto_email"}

type userList[T any] struct {
	Users []T `json:"users"`
}

type userOne[T any] struct {
	User *T `json:"user"`
}

func (c *Client) searchQuery(field, term string) (url.Values, error) {
	if field == "" {
		return nil, Invalid("field", "is required")
	}
	if term == "" {
		return nil, Invalid("term", "enter a search term")
	}
	return url.Values{"field": {field}, "term": {term}, "_": {c.cacheBust()}}, nil
}

func listUsers[T any](ctx context.Context, c *Client, op, path string, q url.Values) ([]T, error) {
	var out userList[T]
	if err := c.do(ctx, op, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func getUser[T any](ctx context.Context, c *Client, op, path, email string) (*T, error) {
	if email == "" {
		return nil, Invalid("email", "is required")
	}
	var out userOne[T]
	if err := c.do(ctx, op, http.MethodGet, path, url.Values{"email": {email}}, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &AppError{Op: op, Message: "user not found"}
	}
	return out.User, nil
}

// SearchUsers searches the game directory.
func (c *Client) SearchUsers(ctx context.Context, field, term string) ([]User, error) {
	q, err := c.searchQuery(field, term)
	if err != nil {
		return nil, err
	}
	return listUsers[User](ctx, c, "search users", "/api/search-users", q)
}

// ListUsers returns the whole game directory.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	return listUsers[User](ctx, c, "list users", "/api/get-all-users", url.Values{"_": {c.cacheBust()}})
}

// GetUser fetches one game directory record.
func (c *Client) GetUser(ctx context.Context, email string) (*User, error) {
	return getUser[User](ctx, c, "get user", "/api/get-user", email)
}

// UpdateUser writes back a whole game directory record.
func (c *Client) UpdateUser(ctx context.Context, u User) error {
	if u.Email == "" {
		return Invalid("email", "is required")
	}
	return c.do(ctx, "update user", http.MethodPost, "/api/update-user", nil, u, nil)
}

// DeleteUser removes a game directory record.
func (c *Client) DeleteUser(ctx context.Context, email string) error {
	if email == "" {
		return Invalid("email", "is required")
	}
	return c.do(ctx, "delete user", http.MethodDelete, "/api/delete-user", url.Values{"email": {email}}, nil, nil)
}

// SearchPublicUsers searches the public directory.
func (c *Client) SearchPublicUsers(ctx context.Context, field, term string) ([]PublicUser, error) {
	q, err := c.searchQuery(field, term)
	if err != nil {
		return nil, err
	}
	return listUsers[PublicUser](ctx, c, "search public users", "/api/search-public-users", q)
}

// ListPublicUsers returns the whole public directory.
func (c *Client) ListPublicUsers(ctx context.Context) ([]PublicUser, error) {
	return listUsers[PublicUser](ctx, c, "list public users", "/api/get-all-public-users", url.Values{"_": {c.cacheBust()}})
}

// GetPublicUser fetches one public directory record.
func (c *Client) GetPublicUser(ctx context.Context, email string) (*PublicUser, error) {
	return getUser[PublicUser](ctx, c, "get public user", "/api/get-public-user", email)
}

// UpdatePublicUser writes back a whole public directory record.
func (c *Client) UpdatePublicUser(ctx context.Context, u PublicUser) error {
	if u.Email == "" {
		return Invalid("email", "is required")
	}
	return c.do(ctx, "update public user", http.MethodPost, "/api/update-public-user", nil, u, nil)
}

// DeletePublicUser removes a public directory record.
func (c *Client) DeletePublicUser(ctx context.Context, email string) error {
	if email == "" {
		return Invalid("email", "is required")
	}
	return c.do(ctx, "delete public user", http.MethodPost, "/api/delete-public-user", nil,
		map[string]string{"email": email}, nil)
}

// LegacySave is the username of the single-user legacy town.
const LegacySave = "mytown"

// GetUserSave returns the save of username rendered as protobuf text. The
// legacy town is read when legacy is set or username is LegacySave.
func (c *Client) GetUserSave(ctx context.Context, username string, legacy bool) (string, error) {
	if username == "" {
		return "", Invalid("username", "is required")
	}
	in := struct {
		Username string `json:"username"`
		IsLegacy bool   `json:"isLegacy"`
	}{username, legacy || username == LegacySave}

	var out struct {
		Status string `json:"status"`
		Save   string `json:"save"`
	}
	if err := c.do(ctx, "get user save", http.MethodPost, "/api/get-user-save", nil, in, &out); err != nil {
		return "", err
	}
	if out.Status != "success" {
		return "", &AppError{Op: "get user save", Message: "Failed to load save data"}
	}
	return out.Save, nil
}
