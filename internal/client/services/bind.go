package services

import (
	"context"

	"github.com/dmitrijs2005/docmark/internal/logging"
)

// BindRegistry keeps the registry in step with the session: it loads the
// file list when a session becomes authenticated and empties the registry
// when it ends. The returned func undoes the binding.
func BindRegistry(session SessionService, registry FileRegistry, log logging.Logger) func() {
	if log == nil {
		log = logging.Discard()
	}
	return session.Subscribe(func(ctx context.Context, ev SessionEvent) {
		switch {
		case ev.To == StateUnauthenticated:
			registry.Reset()
		case ev.To == StateAuthenticated && ev.From != StateAuthenticated:
			if err := registry.Load(ctx, nil); err != nil {
				log.Warn(ctx, "initial file load failed", "error", err)
			}
		}
	})
}
