// Package fileops is the resource-operation client: file listing, transfer
// and management on the provider's storage API, keyed by an access token.
package fileops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	listPath     = "/api/files"
	infoPath     = "/api/files/info"
	downloadPath = "/api/files/download"
	uploadPath   = "/api/files/upload"
	managePath   = "/api/files/manage"
	mkdirPath    = "/api/files/mkdir"

	defaultTimeout = 2 * time.Minute
	maxListLimit   = 1000
)

// Client talks to the provider's resource API on behalf of one access token.
type Client struct {
	hc      *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient builds a resource client. Requests carry the access token via an
// oauth2 token source.
func NewClient(ctx context.Context, baseURL, accessToken string, log zerolog.Logger) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, src)
	hc.Timeout = defaultTimeout

	return &Client{hc: hc, baseURL: baseURL, log: log}, nil
}

// List returns the entries of a remote directory.
func (c *Client) List(ctx context.Context, dir string, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = 100
	}
	order := opts.Order
	if order == "" {
		order = "time"
	}

	q := url.Values{
		"path":  {dir},
		"limit": {strconv.Itoa(limit)},
		"order": {order},
		"desc":  {strconv.FormatBool(opts.Desc)},
	}

	var out struct {
		Errno int     `json:"errno"`
		Msg   string  `json:"errmsg"`
		List  []Entry `json:"list"`
	}
	if err := c.getJSON(ctx, listPath, q, &out); err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	if out.Errno != 0 {
		return nil, &APIError{Errno: out.Errno, Msg: out.Msg}
	}
	return out.List, nil
}

// Info returns the metadata of one remote path.
func (c *Client) Info(ctx context.Context, path string) (*Entry, error) {
	var out struct {
		Errno int    `json:"errno"`
		Msg   string `json:"errmsg"`
		Info  *Entry `json:"info"`
	}
	if err := c.getJSON(ctx, infoPath, url.Values{"path": {path}}, &out); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if out.Errno != 0 {
		return nil, &APIError{Errno: out.Errno, Msg: out.Msg}
	}
	if out.Info == nil {
		return nil, fmt.Errorf("stat %s: empty metadata in response", path)
	}
	return out.Info, nil
}

// Download streams a remote file to a local path, reporting progress along
// the way. The destination directory is created if needed.
func (c *Client) Download(ctx context.Context, remote, local string, progress Progress) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+downloadPath+"?"+url.Values{"path": {remote}}.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", remote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if apiErr := decodeAPIError(resp); apiErr != nil {
			return fmt.Errorf("downloading %s: %w", remote, apiErr)
		}
		return fmt.Errorf("downloading %s: %s", remote, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	dst, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("creating %s: %w", local, err)
	}
	defer dst.Close()

	var w io.Writer = dst
	if progress != nil {
		w = io.MultiWriter(dst, &progressWriter{total: resp.ContentLength, report: progress})
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", local, err)
	}
	c.log.Info().Str("remote", remote).Str("local", local).Msg("file downloaded")
	return nil
}

// Upload sends a local file to a remote path, reporting progress.
func (c *Client) Upload(ctx context.Context, local, remote string, progress Progress) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("opening %s: %w", local, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}

	var body io.Reader = f
	if progress != nil {
		body = io.TeeReader(f, &progressWriter{total: st.Size(), report: progress})
	}

	endpoint := c.baseURL + uploadPath + "?" + url.Values{"path": {remote}}.Encode()
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, body)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.ContentLength = st.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", local, err)
	}
	defer resp.Body.Close()

	var out struct {
		Errno int    `json:"errno"`
		Msg   string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("parsing upload response: %w", err)
	}
	if out.Errno != 0 {
		return fmt.Errorf("uploading %s: %w", local, &APIError{Errno: out.Errno, Msg: out.Msg})
	}
	c.log.Info().Str("local", local).Str("remote", remote).Int64("size", st.Size()).Msg("file uploaded")
	return nil
}

// Copy duplicates a remote file or directory.
func (c *Client) Copy(ctx context.Context, source, dest string) error {
	return c.manage(ctx, "copy", source, dest)
}

// Move relocates a remote file or directory.
func (c *Client) Move(ctx context.Context, source, dest string) error {
	return c.manage(ctx, "move", source, dest)
}

// Delete removes a remote file or directory.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.manage(ctx, "delete", path, "")
}

// Mkdir creates a remote directory.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	out := struct {
		Errno int    `json:"errno"`
		Msg   string `json:"errmsg"`
	}{}
	if err := c.postJSON(ctx, mkdirPath, map[string]string{"path": path}, &out); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	if out.Errno != 0 {
		return fmt.Errorf("mkdir %s: %w", path, &APIError{Errno: out.Errno, Msg: out.Msg})
	}
	return nil
}

func (c *Client) manage(ctx context.Context, op, source, dest string) error {
	payload := map[string]string{"op": op, "source": source}
	if dest != "" {
		payload["dest"] = dest
	}
	out := struct {
		Errno int    `json:"errno"`
		Msg   string `json:"errmsg"`
	}{}
	if err := c.postJSON(ctx, managePath, payload, &out); err != nil {
		return fmt.Errorf("%s %s: %w", op, source, err)
	}
	if out.Errno != 0 {
		return fmt.Errorf("%s %s: %w", op, source, &APIError{Errno: out.Errno, Msg: out.Msg})
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if apiErr := decodeAPIError(resp); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	var out struct {
		Errno int    `json:"errno"`
		Msg   string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Errno == 0 {
		return nil
	}
	return &APIError{Errno: out.Errno, Msg: out.Msg}
}

// progressWriter counts bytes and forwards progress reports.
type progressWriter struct {
	total   int64
	current int64
	report  Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.current += int64(len(b))
	if p.total > 0 {
		p.report(float64(p.current)/float64(p.total), p.current, p.total)
	} else {
		p.report(0, p.current, -1)
	}
	return len(b), nil
}
