// Package tokencache stores granted tokens keyed by the resource owner they
// were granted for, so a serving process can reuse a token instead of
// re-running the whole device flow. The authorization core itself never
// persists anything; this lives behind the CLI/server layer.
package tokencache

import (
	"context"
	"errors"

	"github.com/driveflow/driveflow/authflow"
)

// ErrNotFound means no live token is cached for the key.
var ErrNotFound = errors.New("token not found")

// Cache stores tokens until they expire.
type Cache interface {
	// Put stores a token under a key; the entry lives until the token's
	// own expiry.
	Put(ctx context.Context, key string, token *authflow.TokenResult) error

	// Get returns the token for a key, or ErrNotFound.
	Get(ctx context.Context, key string) (*authflow.TokenResult, error)

	// Delete drops the token for a key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}
