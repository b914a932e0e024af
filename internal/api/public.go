package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// PublicUserInfo is the profile returned by login and token validation.
type PublicUserInfo struct {
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	IsVerified       bool   `json:"is_verified"`
	RegistrationDate int64  `json:"registration_date,omitempty"`
	LastLogin        int64  `json:"last_login,omitempty"`
}

// LoginResult is returned by PublicLogin.
type LoginResult struct {
	Token    string         `json:"token"`
	UserInfo PublicUserInfo `json:"user_info"`
}

// PublicLogin exchanges a player's email and password for a bearer token.
func (c *Client) PublicLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, Invalid("", "email and password are required")
	}
	var out LoginResult
	err := c.do(ctx, "login", http.MethodPost, "/api/public/login", nil,
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &AppError{Op: "login", Message: "server did not return a token"}
	}
	return &out, nil
}

// ValidateToken checks a stored player token against the server.
func (c *Client) ValidateToken(ctx context.Context, email, token string) (*PublicUserInfo, error) {
	if email == "" || token == "" {
		return nil, Invalid("", "email and token are required")
	}
	var out struct {
		UserInfo PublicUserInfo `json:"user_info"`
	}
	err := c.do(ctx, "validate token", http.MethodPost, "/api/public/validate_token", nil,
		map[string]string{"email": email, "token": token}, &out)
	if err != nil {
		return nil, err
	}
	return &out.UserInfo, nil
}

// TownInfo reports whether email has a stored town and its metadata.
func (c *Client) TownInfo(ctx context.Context, email string) (*TownInfo, error) {
	if email == "" {
		return nil, Invalid("email", "is required")
	}
	var out TownInfo
	if err := c.do(ctx, "town info", http.MethodGet, "/api/public/town_info", url.Values{"email": {email}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublicImportTown replaces the caller's own town with the raw bytes of r.
// size is announced in X-File-Size; pass -1 when unknown.
func (c *Client) PublicImportTown(ctx context.Context, email, filename string, r io.Reader, size int64) error {
	if email == "" {
		return Invalid("email", "is required")
	}
	if filename == "" {
		return Invalid("filename", "is required")
	}
	h := http.Header{}
	h.Set("X-Filename", filename)
	return c.rawUpload(ctx, "import town", "/api/public/import_town", url.Values{"email": {email}}, h, r, size)
}

// PublicExportTown streams the caller's own town into w.
func (c *Client) PublicExportTown(ctx context.Context, email string, w io.Writer) (int64, error) {
	if email == "" {
		return 0, Invalid("email", "is required")
	}
	q := url.Values{"email": {email}}
	if c.bearer != "" {
		q.Set("token", c.bearer)
	}
	return c.download(ctx, "export town", "/api/public/export_town", q, w)
}

// PublicDeleteTown deletes the caller's own town.
func (c *Client) PublicDeleteTown(ctx context.Context, email string) error {
	if email == "" {
		return Invalid("email", "is required")
	}
	return c.do(ctx, "delete town", http.MethodPost, "/api/public/delete_town", nil,
		map[string]string{"email": email}, nil)
}

// Currency is a user's donut balance.
type Currency struct {
	HasCurrency bool `json:"hasCurrency"`
	Donuts      int  `json:"donuts"`
}

// CurrencyInfo reads the caller's donut balance.
func (c *Client) CurrencyInfo(ctx context.Context, email string) (*Currency, error) {
	if email == "" {
		return nil, Invalid("email", "is required")
	}
	var out Currency
	if err := c.do(ctx, "currency info", http.MethodGet, "/api/public/currency_info", url.Values{"email": {email}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveCurrency writes the caller's donut balance. donuts must already be
// clamped; see ClampDonuts.
func (c *Client) SaveCurrency(ctx context.Context, email string, donuts int) error {
	if email == "" {
		return Invalid("email", "is required")
	}
	if donuts < 0 || donuts > MaxDonuts {
		return Invalid("donuts", "out of range")
	}
	return c.do(ctx, "save currency", http.MethodPost, "/api/public/save_currency", nil,
		map[string]any{"email": email, "donuts": donuts}, nil)
}

// MaxDisplayNameLen is the longest display name the server accepts, in
// characters.
const MaxDisplayNameLen = 50

// NormalizeDisplayName trims name, folds it to NFC and checks its length.
// Length is counted in characters after normalisation, so a name typed with
// combining marks is not rejected for being "too long".
func NormalizeDisplayName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return "", Invalid("display_name", "cannot be empty")
	case n > MaxDisplayNameLen:
		return "", Invalid("display_name", fmt.Sprintf("must be at most %d characters", MaxDisplayNameLen))
	}
	return name, nil
}

// UpdateDisplayName changes the caller's display name and returns the
// normalised name that was sent.
func (c *Client) UpdateDisplayName(ctx context.Context, email, name string) (string, error) {
	if email == "" {
		return "", Invalid("email", "is required")
	}
	name, err := NormalizeDisplayName(name)
	if err != nil {
		return "", err
	}
	err = c.do(ctx, "update display name", http.MethodPost, "/api/public/update_display_name", nil,
		map[string]string{"email": email, "display_name": name}, nil)
	if err != nil {
		return "", err
	}
	return name, nil
}

// DisplayName fetches the caller's display name. An empty result means none
// is set.
func (c *Client) DisplayName(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", Invalid("email", "is required")
	}
	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.do(ctx, "get display name", http.MethodGet, "/api/public/get_display_name", url.Values{"email": {email}}, nil, &out); err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

// Submission is a public town upload for operator review.
type Submission struct {
	Email       string
	TownName    string
	Description string
	FileName    string
}

// SubmitTownUpload queues a town for review. It returns the id assigned to
// the pending upload, when the server reports one.
func (c *Client) SubmitTownUpload(ctx context.Context, s Submission, r io.Reader) (string, error) {
	if s.Email == "" {
		return "", Invalid("email", "is required")
	}
	fields := map[string]string{"email": s.Email, "town_name": s.TownName, "description": s.Description}
	body, contentType := multipartBody(fields, "town_file", s.FileName, r)

	req, err := c.newRequest(ctx, http.MethodPost, "/api/submit_town_upload", nil, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	data, _, err := c.send("submit town", req)
	if err != nil {
		return "", err
	}
	var out struct {
		ID Text `json:"id"`
	}
	if err := decode("submit town", data, &out); err != nil {
		return "", err
	}
	return out.ID.String(), nil
}

// SubmissionStatus reports the review state of a submitted town.
func (c *Client) SubmissionStatus(ctx context.Context, id string) (*PendingTown, error) {
	if id == "" {
		return nil, Invalid("id", "is required")
	}
	var out struct {
		Town *PendingTown `json:"town"`
		PendingTown
	}
	if err := c.do(ctx, "submission status", http.MethodGet, "/api/submit_town_upload/status/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Town != nil {
		return out.Town, nil
	}
	return &out.PendingTown, nil
}
