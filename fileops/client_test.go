package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), srv.URL, "at-test", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(context.Background(), "https://example.com", "", zerolog.Nop()); err == nil {
		t.Error("empty access token accepted")
	}
}

func TestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer at-test" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("path") != "/docs" || q.Get("order") != "time" || q.Get("desc") != "true" {
			t.Errorf("query = %v", q)
		}
		if _, err := w.Write([]byte(`{"errno":0,"list":[
			{"path":"/docs/a.txt","filename":"a.txt","size":12,"is_dir":false,"mtime":1700000000,"md5":"abc"},
			{"path":"/docs/sub","filename":"sub","size":0,"is_dir":true,"mtime":1700000100}
		]}`)); err != nil {
			t.Error(err)
		}
	})

	entries, err := c.List(context.Background(), "/docs", ListOptions{Order: "time", Desc: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []Entry{
		{Path: "/docs/a.txt", Filename: "a.txt", Size: 12, MTime: 1700000000, MD5: "abc"},
		{Path: "/docs/sub", Filename: "sub", IsDir: true, MTime: 1700000100},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestListAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte(`{"errno":42001,"errmsg":""}`)); err != nil {
			t.Error(err)
		}
	})

	_, err := c.List(context.Background(), "/", ListOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.TokenInvalid() {
		t.Error("errno 42001 not reported as invalid token")
	}
	if !strings.Contains(apiErr.Error(), "access token expired") {
		t.Errorf("Error() = %q, want a known errno message", apiErr.Error())
	}
}

func TestInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/info" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if _, err := w.Write([]byte(`{"errno":0,"info":{"path":"/a.txt","filename":"a.txt","size":5,"mtime":1700000000}}`)); err != nil {
			t.Error(err)
		}
	})

	entry, err := c.Info(context.Background(), "/a.txt")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if entry.Path != "/a.txt" || entry.Size != 5 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Modified().Unix() != 1700000000 {
		t.Errorf("Modified = %v", entry.Modified())
	}
}

func TestDownload(t *testing.T) {
	content := strings.Repeat("payload ", 100)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/download" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Error(err)
		}
	})

	local := filepath.Join(t.TempDir(), "nested", "out.txt")
	var last int64
	err := c.Download(context.Background(), "/remote.txt", local, func(fraction float64, current, total int64) {
		last = current
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != content {
		t.Errorf("downloaded %d bytes, want %d", len(data), len(content))
	}
	if last != int64(len(content)) {
		t.Errorf("final progress = %d, want %d", last, len(content))
	}
}

func TestDownloadAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		if _, err := w.Write([]byte(`{"errno":6,"errmsg":""}`)); err != nil {
			t.Error(err)
		}
	})

	err := c.Download(context.Background(), "/remote.txt", filepath.Join(t.TempDir(), "out.txt"), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Errno != 6 {
		t.Errorf("Errno = %d, want 6", apiErr.Errno)
	}
}

func TestUpload(t *testing.T) {
	local := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(local, []byte("upload body"), 0o600); err != nil {
		t.Fatal(err)
	}

	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("path"); got != "/remote/in.txt" {
			t.Errorf("path query = %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		gotBody = string(body)
		if _, err := w.Write([]byte(`{"errno":0}`)); err != nil {
			t.Error(err)
		}
	})

	var reported int64
	err := c.Upload(context.Background(), local, "/remote/in.txt", func(fraction float64, current, total int64) {
		reported = current
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotBody != "upload body" {
		t.Errorf("server received %q", gotBody)
	}
	if reported != int64(len("upload body")) {
		t.Errorf("final progress = %d", reported)
	}
}

func TestManageOperations(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		want map[string]string
	}{
		{
			name: "copy",
			call: func(c *Client) error { return c.Copy(context.Background(), "/a", "/b") },
			want: map[string]string{"op": "copy", "source": "/a", "dest": "/b"},
		},
		{
			name: "move",
			call: func(c *Client) error { return c.Move(context.Background(), "/a", "/b") },
			want: map[string]string{"op": "move", "source": "/a", "dest": "/b"},
		},
		{
			name: "delete",
			call: func(c *Client) error { return c.Delete(context.Background(), "/a") },
			want: map[string]string{"op": "delete", "source": "/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/files/manage" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if err := readJSON(r.Body, &got); err != nil {
					t.Fatal(err)
				}
				if _, err := w.Write([]byte(`{"errno":0}`)); err != nil {
					t.Error(err)
				}
			})

			if err := tt.call(c); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMkdir(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/mkdir" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var got map[string]string
		if err := readJSON(r.Body, &got); err != nil {
			t.Fatal(err)
		}
		if got["path"] != "/new-dir" {
			t.Errorf("payload = %v", got)
		}
		if _, err := w.Write([]byte(`{"errno":0}`)); err != nil {
			t.Error(err)
		}
	})

	if err := c.Mkdir(context.Background(), "/new-dir"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
}

func readJSON(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}
