// Package credentials persists the bearer token and the user snapshot.
//
// Token and snapshot are written and cleared together. Load reports each
// half separately so the session layer can detect (and discard) a partial
// state left behind by an older client or a crash.
package credentials

import (
	"context"
	"errors"
)

const (
	KeyToken = "auth_token"
	KeyUser  = "auth_user"
	keySalt  = "credentials_salt"
)

// ErrUnreadable is returned by Load when a stored value cannot be decoded,
// for example after the credential secret changed.
var ErrUnreadable = errors.New("stored credentials unreadable")

// Snapshot is the persisted session. An empty Token or nil User means that
// half is absent.
type Snapshot struct {
	Token string
	User  []byte
}

// Complete reports whether both halves are present.
func (s Snapshot) Complete() bool { return s.Token != "" && len(s.User) > 0 }

// Empty reports whether both halves are absent.
func (s Snapshot) Empty() bool { return s.Token == "" && len(s.User) == 0 }

type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	Load(ctx context.Context) (Snapshot, error)
	// Save replaces both halves in one step.
	Save(ctx context.Context, s Snapshot) error
	// Clear removes both halves in one step.
	Clear(ctx context.Context) error
}
