package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/model"
)

// Poller drives the status polling loop: every interval it fetches the latest
// status snapshot, merges it through the Normalizer, and publishes the result.
// A failed poll is logged and skipped; the previous snapshot stays available
// so a flaky upstream degrades to stale data instead of an empty dashboard.
type Poller struct {
	client     *komari.Client
	normalizer *Normalizer
	interval   time.Duration
	logger     zerolog.Logger

	onSnapshot func(model.Snapshot) // Optional publish hook

	mu     sync.RWMutex
	latest *model.Snapshot
}

// NewPoller creates a Poller. onSnapshot, if non-nil, is invoked after every
// successful merge with the fresh snapshot.
func NewPoller(client *komari.Client, normalizer *Normalizer, interval time.Duration, onSnapshot func(model.Snapshot), logger zerolog.Logger) *Poller {
	return &Poller{
		client:     client,
		normalizer: normalizer,
		interval:   interval,
		onSnapshot: onSnapshot,
		logger:     logger.With().Str("component", "poller").Logger(),
	}
}

// Run polls until the context is canceled. The first poll happens
// immediately so the dashboard has data before the first full interval.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("status polling started")

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("status polling stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Latest returns the most recent snapshot, or nil before the first
// successful poll.
func (p *Poller) Latest() *model.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// poll performs a single fetch-merge-publish cycle.
func (p *Poller) poll(ctx context.Context) {
	status, err := p.client.GetNodesLatestStatus(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("status fetch failed, keeping previous snapshot")
		return
	}

	snapshot := model.Snapshot{
		Now:     time.Now().UnixMilli(),
		Servers: p.normalizer.Merge(ctx, status),
	}

	p.mu.Lock()
	p.latest = &snapshot
	p.mu.Unlock()

	p.logger.Debug().Int("servers", len(snapshot.Servers)).Msg("snapshot published")

	if p.onSnapshot != nil {
		p.onSnapshot(snapshot)
	}
}
