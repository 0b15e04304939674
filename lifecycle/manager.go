// Package lifecycle keeps a heartbeated lease alive for the duration of a
// migration run. It is the run lock for databases without session locks.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getpup/schemamigrate"
	"github.com/getpup/schemamigrate/lock"
	"github.com/getpup/schemamigrate/metrics"
)

// Config holds configuration for the lifecycle Manager.
type Config struct {
	// Store persists the leases (required).
	Store lock.LeaseStore

	// HeartbeatInterval is the interval between heartbeats (default: 5s).
	HeartbeatInterval time.Duration

	// StaleTimeout is how long a lease may go without a heartbeat before
	// another owner may take it over (default: 30s).
	StaleTimeout time.Duration

	// AcquireTimeout is how long Acquire keeps retrying a held lease.
	// Zero fails immediately.
	AcquireTimeout time.Duration

	// Logger is for observability (optional).
	Logger schemamigrate.Logger

	// Collector records heartbeat latency (optional).
	Collector *metrics.Collector

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Manager acquires leases and heartbeats them until released.
// It implements lock.Locker.
type Manager struct {
	config Config
}

// New creates a new lifecycle Manager with the given configuration.
// Applies default values for HeartbeatInterval, StaleTimeout and Now if not set.
func New(cfg Config) *Manager {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.StaleTimeout == 0 {
		cfg.StaleTimeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		config: cfg,
	}
}

// Acquire takes the lease for key under a fresh owner token and starts
// heartbeating it. Returns lock.ErrHeld if a live lease exists after
// AcquireTimeout.
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	release, _, err := m.AcquireWatched(ctx, key)
	return release, err
}

// AcquireWatched is Acquire plus a channel that is closed when the lease is
// lost before release: it was taken over, or heartbeats kept failing until
// it would have gone stale.
func (m *Manager) AcquireWatched(ctx context.Context, key string) (func(), <-chan struct{}, error) {
	owner := uuid.NewString()

	if err := m.acquire(ctx, key, owner); err != nil {
		return nil, nil, err
	}

	if m.config.Logger != nil {
		m.config.Logger.Debug(ctx, "lease acquired", "key", key, "owner", owner)
	}

	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	lost := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.StartHeartbeat(hbCtx, key, owner); err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "lease lost", "key", key, "owner", owner, "error", err)
			}
			close(lost)
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			<-done
			if err := m.config.Store.Release(context.Background(), key, owner); err != nil && m.config.Logger != nil {
				m.config.Logger.Error(ctx, "lease release failed", "key", key, "owner", owner, "error", err)
			}
		})
	}
	return release, lost, nil
}

func (m *Manager) acquire(ctx context.Context, key, owner string) error {
	deadline := m.config.Now().Add(m.config.AcquireTimeout)

	for {
		now := m.config.Now()
		ok, err := m.config.Store.TryAcquire(ctx, key, owner, now, now.Add(-m.config.StaleTimeout))
		if err != nil {
			return fmt.Errorf("failed to acquire lease: %w", err)
		}
		if ok {
			return nil
		}

		if !now.Before(deadline) {
			return lock.ErrHeld
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.HeartbeatInterval):
		}
	}
}

// StartHeartbeat runs a heartbeat loop until the context is cancelled.
// Failed heartbeats are retried on the next tick. Returns lock.ErrLeaseLost
// if the lease was taken over, or once the lease would go stale before the
// next attempt.
func (m *Manager) StartHeartbeat(ctx context.Context, key, owner string) error {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	lastBeat := m.config.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			err := m.config.Store.Heartbeat(ctx, key, owner, m.config.Now())
			if errors.Is(err, lock.ErrLeaseLost) {
				return err
			}
			if err != nil {
				// Another owner may take the lease once it is stale.
				since := m.config.Now().Sub(lastBeat)
				if since+m.config.HeartbeatInterval >= m.config.StaleTimeout {
					return fmt.Errorf("%w: no heartbeat for %s: %v", lock.ErrLeaseLost, since, err)
				}
				if m.config.Logger != nil {
					m.config.Logger.Error(ctx, "heartbeat failed, retrying", "key", key, "owner", owner, "since", since, "error", err)
				}
				continue
			}
			lastBeat = m.config.Now()

			if m.config.Collector != nil {
				m.config.Collector.ObserveHeartbeatLatency(time.Since(start).Seconds())
			}
			if m.config.Logger != nil {
				m.config.Logger.Debug(ctx, "heartbeat sent", "key", key, "owner", owner)
			}
		}
	}
}

var _ lock.WatchedLocker = (*Manager)(nil)
