package fileops

import (
	"fmt"
	"time"
)

// Entry describes one remote file or directory.
type Entry struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	IsDir    bool   `json:"is_dir"`
	MTime    int64  `json:"mtime"`
	MD5      string `json:"md5,omitempty"`
}

// Modified returns the entry's modification time.
func (e *Entry) Modified() time.Time {
	return time.Unix(e.MTime, 0)
}

// ListOptions narrows a directory listing.
type ListOptions struct {
	Limit int    // maximum entries, provider caps at 1000
	Order string // one of time, size, name
	Desc  bool
}

// Progress reports transfer advancement. fraction is in [0,1]; total is -1
// when the size is unknown.
type Progress func(fraction float64, current, total int64)

// APIError is a structured provider error from the resource API.
type APIError struct {
	Errno int
	Msg   string
}

func (e *APIError) Error() string {
	if msg, ok := errnoMessages[e.Errno]; ok && e.Msg == "" {
		return fmt.Sprintf("resource API error %d: %s", e.Errno, msg)
	}
	return fmt.Sprintf("resource API error %d: %s", e.Errno, e.Msg)
}

// TokenInvalid reports whether the error means the access token is no longer
// usable and the caller should refresh or reauthorize.
func (e *APIError) TokenInvalid() bool {
	return e.Errno == errnoTokenUnauthorized || e.Errno == errnoTokenExpired
}

const (
	errnoTokenUnauthorized = 42000
	errnoTokenExpired      = 42001
)

var errnoMessages = map[int]string{
	-1:                     "system error",
	2:                      "invalid parameter",
	3:                      "not signed in",
	4:                      "user not authorized",
	6:                      "access to user data not allowed",
	errnoTokenUnauthorized: "access token not authorized",
	errnoTokenExpired:      "access token expired",
}
