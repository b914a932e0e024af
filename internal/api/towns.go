package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"
)

// TownOpsPath is the town operations plugin endpoint.
const TownOpsPath = "/mh/games/bg_gameserver_plugin/townOperations/"

// TownOp is an operation understood by the town operations endpoint.
type TownOp string

const (
	TownOpLoad   TownOp = "load"
	TownOpSave   TownOp = "save"
	TownOpCopy   TownOp = "copy"
	TownOpImport TownOp = "import"
)

// TownOpRequest is the body of a town operations call.
type TownOpRequest struct {
	Operation TownOp `json:"operation"`
	Email     string `json:"email,omitempty"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`
	FilePath  string `json:"filePath,omitempty"`
}

// Validate checks the fields each operation requires.
func (r TownOpRequest) Validate() error {
	switch r.Operation {
	case TownOpLoad, TownOpSave:
		if r.Email == "" {
			return Invalid("email", "is required for load/save operations")
		}
	case TownOpCopy:
		if r.Source == "" || r.Target == "" {
			return Invalid("source/target", "source and target emails are required for copy operations")
		}
	case TownOpImport:
		if r.FilePath == "" {
			return Invalid("filePath", "is required for import operations")
		}
	case "":
		return Invalid("operation", "is required")
	default:
		return Invalid("operation", fmt.Sprintf("invalid operation %q: must be load, save, copy or import", r.Operation))
	}
	return nil
}

// TownOpResult is the acknowledgement of a town operation.
type TownOpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email,omitempty"`
}

// TownOperation posts req to endpoint with token in the authHeader header.
// An empty endpoint means TownOpsPath.
func (c *Client) TownOperation(ctx context.Context, endpoint, authHeader, token string, req TownOpRequest) (*TownOpResult, error) {
	if token == "" {
		return nil, Invalid("token", "authentication token is required")
	}
	if authHeader == "" {
		return nil, Invalid("auth_header", "is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if endpoint == "" {
		endpoint = TownOpsPath
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("town operation: encoding request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(authHeader, token)

	op := "town " + string(req.Operation)
	data, _, err := c.send(op, httpReq)
	if err != nil {
		return nil, err
	}
	var out TownOpResult
	if err := decode(op, data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadTownFile stages a town file on the server and returns the server
// side path to pass to an import operation.
func (c *Client) UploadTownFile(ctx context.Context, name string, r io.Reader) (string, error) {
	body, contentType := multipartBody(map[string]string{}, "town_file", filepath.Base(name), r)

	req, err := c.newRequest(ctx, http.MethodPost, "/upload_town_file", nil, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	data, _, err := c.send("upload town file", req)
	if err != nil {
		return "", err
	}
	var out struct {
		Success  bool   `json:"success"`
		FilePath string `json:"filePath"`
	}
	if err := decode("upload town file", data, &out); err != nil {
		return "", err
	}
	if out.FilePath == "" {
		return "", &AppError{Op: "upload town file", Message: "server did not return a staged file path"}
	}
	return out.FilePath, nil
}

// multipartBody streams fields and one file part through a pipe so large
// files are never buffered whole.
func multipartBody(fields map[string]string, fileField, fileName string, file io.Reader) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	return pr, mw.FormDataContentType()
}

// TownInfo describes a stored town save.
type TownInfo struct {
	HasTown      bool   `json:"hasTown"`
	Size         int64  `json:"size,omitempty"`
	LastModified int64  `json:"lastModified,omitempty"`
	Path         string `json:"path,omitempty"`
}

// Modified returns LastModified as a time.
func (t TownInfo) Modified() time.Time {
	if t.LastModified == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.LastModified)
}

// rawUpload sends file as the raw request body, announcing its size in
// X-File-Size so the server can reject oversized files early.
func (c *Client) rawUpload(ctx context.Context, op, path string, query url.Values, header http.Header, r io.Reader, size int64) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, query, r)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
		req.Header.Set("X-File-Size", strconv.FormatInt(size, 10))
	}

	data, _, err := c.send(op, req)
	if err != nil {
		return err
	}
	return decode(op, data, nil)
}

// download streams a binary response body into w.
func (c *Client) download(ctx context.Context, op, path string, query url.Values, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{Op: op, Code: resp.StatusCode, Message: errorText(data)}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &NetworkError{Op: op, Err: fmt.Errorf("reading town data: %w", err)}
	}
	return n, nil
}
