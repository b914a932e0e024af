package api

import (
	"context"
	"errors"
	"net/http"
)

// RoleAdmin is the role of an operator with full dashboard access.
const RoleAdmin = "ADMIN"

// StaffLogin is returned by Login.
type StaffLogin struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login authenticates an operator and returns a session token for the
// tsto_session cookie.
func (c *Client) Login(ctx context.Context, username, password string) (*StaffLogin, error) {
	if username == "" || password == "" {
		return nil, Invalid("", "username and password are required")
	}
	var out StaffLogin
	err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", nil,
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &AppError{Op: "login", Message: "server did not return a session token"}
	}
	return &out, nil
}

// SessionInfo is the result of ValidateSession.
type SessionInfo struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ValidateSession asks the server whether token is a live staff session.
// A rejected token is reported as Valid=false, not as an error; errors are
// reserved for failures to get an answer.
func (c *Client) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	if token == "" {
		return &SessionInfo{}, nil
	}
	var out SessionInfo
	err := c.WithBearer(token).do(ctx, "validate session", http.MethodPost, "/api/auth/validate_session", nil,
		map[string]string{"token": token}, &out)
	if err != nil {
		var (
			se *StatusError
			ae *AppError
		)
		if errors.As(err, &se) || errors.As(err, &ae) {
			return &SessionInfo{}, nil
		}
		return nil, err
	}
	return &out, nil
}

// Logout ends the staff session on the server: the API logout first, then
// the page logout, which is attempted even when the first call fails.
// Callers clear their local token regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	apiErr := c.do(ctx, "logout", http.MethodGet, "/api/auth/logout", nil, nil, nil)
	if ctx.Err() != nil {
		return apiErr
	}
	pageErr := c.do(ctx, "logout", http.MethodGet, "/logout", nil, nil, nil)
	return errors.Join(apiErr, pageErr)
}
