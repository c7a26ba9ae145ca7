package identity

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stocktide/stocktide/internal/models"
)

// Watcher consumes session-change events and maintains the latest
// ResolvedIdentity per signed-in principal. A sign-out while a resolution
// is in flight lets the store work finish, so no half-migrated state is
// left behind, but discards the result instead of publishing it.
type Watcher struct {
	service *Service

	mu      sync.RWMutex
	current map[string]*ResolvedIdentity
	gen     map[string]uint64 // bumped on every event; stale results are dropped
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher over the given service.
func NewWatcher(service *Service) *Watcher {
	return &Watcher{
		service: service,
		current: make(map[string]*ResolvedIdentity),
		gen:     make(map[string]uint64),
	}
}

// Run consumes events until the channel closes or the context is
// cancelled, then waits for in-flight resolutions to complete.
func (w *Watcher) Run(ctx context.Context, events <-chan *models.SessionEvent) error {
	defer w.wg.Wait()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			w.Handle(ctx, event)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Handle processes a single session event. Sign-outs invalidate the
// published identity immediately; sign-ins resolve asynchronously.
func (w *Watcher) Handle(ctx context.Context, event *models.SessionEvent) {
	w.mu.Lock()
	w.gen[event.PrincipalID]++
	generation := w.gen[event.PrincipalID]

	if event.Kind == models.SessionSignedOut {
		delete(w.current, event.PrincipalID)
		w.mu.Unlock()
		log.Debug().Str("principal_id", event.PrincipalID).Msg("Session signed out, identity cleared")
		return
	}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// The resolution itself runs detached from per-request
		// cancellation: an interrupted migration would leave the store in
		// a half-migrated state.
		identity, err := w.service.Resolve(context.WithoutCancel(ctx), event)
		if err != nil {
			log.Error().Err(err).Str("principal_id", event.PrincipalID).Msg("Session resolution surfaced an error")
			return
		}

		w.mu.Lock()
		defer w.mu.Unlock()

		if w.gen[event.PrincipalID] != generation {
			// A newer event superseded this resolution; complete but do
			// not publish.
			log.Debug().Str("principal_id", event.PrincipalID).Msg("Discarding stale resolution result")
			return
		}

		w.current[event.PrincipalID] = identity
	}()
}

// Current returns the latest published identity for a principal.
func (w *Watcher) Current(principalID string) (*ResolvedIdentity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	identity, ok := w.current[principalID]
	return identity, ok
}

// Wait blocks until every in-flight resolution has completed. Intended for
// graceful shutdown and tests.
func (w *Watcher) Wait() {
	w.wg.Wait()
}
