// Package token issues and resolves short-lived opaque playback tokens.
//
// A token maps to the descriptor of a pending media fetch. Tokens expire
// after a fixed TTL; expired entries block new lookups only, so a stream
// that started just before expiry runs to completion.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/eagleeye/backend/internal/media"
)

// DefaultTTL is how long a playback token stays resolvable.
const DefaultTTL = 5 * time.Minute

// ErrTokenNotFound is returned when a token is absent or expired. It is a
// normal outcome, not an exceptional one; callers map it to a 404.
var ErrTokenNotFound = errors.New("playback token not found")

// Descriptor is the pending fetch a token refers to.
type Descriptor struct {
	URL      string     `json:"url"`
	Quality  string     `json:"quality"`
	Kind     media.Kind `json:"kind"`
	IssuedAt time.Time  `json:"issued_at"`
}

// Cache maps opaque tokens to pending fetch descriptors. Implementations are
// safe for concurrent use and self-expiring.
type Cache interface {
	// Issue stores the descriptor under a fresh token, unique among
	// currently-live tokens, and returns it.
	Issue(ctx context.Context, d Descriptor) (string, error)

	// Resolve looks up a token, returning ErrTokenNotFound if it is absent
	// or past its TTL. In single-use mode the token is invalidated by the
	// lookup; otherwise it stays resolvable until expiry.
	Resolve(ctx context.Context, token string) (*Descriptor, error)
}
