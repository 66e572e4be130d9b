// Package cache holds the bridge's short-lived in-memory state: the node
// directory cache and the per-server public note store.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"komari-bridge/internal/client/komari"
)

// FetchFunc retrieves the full node roster from the directory source.
type FetchFunc func(ctx context.Context) ([]komari.Node, error)

// Directory memoizes the node roster for a fixed TTL. The roster changes
// rarely compared to the 2-second status poll, so refetching it on every
// merge would hammer the upstream for no benefit.
//
// Concurrent callers during an in-flight fetch share the same pending result
// through singleflight, so a slow upstream never causes duplicate roster
// fetches.
type Directory struct {
	fetch  FetchFunc
	ttl    time.Duration
	clock  func() time.Time // Injectable for tests
	group  singleflight.Group
	logger zerolog.Logger

	mu        sync.RWMutex
	nodes     []komari.Node
	fetchedAt time.Time
}

// NewDirectory creates a directory cache around the given fetch function.
func NewDirectory(fetch FetchFunc, ttl time.Duration, logger zerolog.Logger) *Directory {
	return &Directory{
		fetch:  fetch,
		ttl:    ttl,
		clock:  time.Now,
		logger: logger.With().Str("component", "directory-cache").Logger(),
	}
}

// Get returns the cached roster, fetching it first when the cache is empty or
// expired. The returned slice is shared; callers must not mutate it.
func (d *Directory) Get(ctx context.Context) ([]komari.Node, error) {
	if nodes, ok := d.cached(); ok {
		return nodes, nil
	}

	// All callers that miss at the same time join one fetch.
	result, err, _ := d.group.Do("roster", func() (interface{}, error) {
		// A racing caller may have refilled the cache while this one
		// waited its turn.
		if nodes, ok := d.cached(); ok {
			return nodes, nil
		}

		nodes, err := d.fetch(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("roster fetch failed")
			return nil, err
		}

		d.mu.Lock()
		d.nodes = nodes
		d.fetchedAt = d.clock()
		d.mu.Unlock()

		d.logger.Debug().Int("count", len(nodes)).Msg("roster cached")
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]komari.Node), nil
}

// Invalidate drops the cached roster so the next Get refetches.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.nodes = nil
	d.fetchedAt = time.Time{}
	d.mu.Unlock()
}

// cached returns the roster if it is present and fresh.
func (d *Directory) cached() ([]komari.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.nodes == nil {
		return nil, false
	}
	if d.clock().Sub(d.fetchedAt) >= d.ttl {
		return nil, false
	}
	return d.nodes, true
}
