package credentials

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no credential is stored.
var ErrNotFound = errors.New("credential not found")

// Credential is the token pair authorizing API calls for one session.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether the credential carries no tokens at all.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store persists the session credential.
//
// Implementations must be safe for concurrent use. They are not required to
// serialize conflicting writers: the session guarantees at most one refresh
// is in flight, so Set is never raced by another refresher.
type Store interface {
	// Get returns the stored credential, or ErrNotFound when none is stored.
	Get(ctx context.Context) (Credential, error)

	// Set replaces the stored credential with cred.
	Set(ctx context.Context, cred Credential) error

	// Clear removes the stored credential. Clearing an empty store is not
	// an error.
	Clear(ctx context.Context) error
}
