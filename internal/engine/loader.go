package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"belkon/internal/rollup"
)

type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Loader runs the bulk snapshot fetch and tracks its state. A failed fetch
// is retried once before the loader reports failed; the snapshot itself is
// never cached, every Load hits the store.
type Loader struct {
	Fetch func(ctx context.Context, orgID, planID string) (rollup.Snapshot, error)
	Log   *zap.Logger

	mu      sync.Mutex
	state   LoadState
	lastErr error
}

func (l *Loader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Loader) setState(state LoadState, err error) {
	l.mu.Lock()
	l.state = state
	l.lastErr = err
	l.mu.Unlock()
}

func (l *Loader) Load(ctx context.Context, orgID, planID string) (rollup.Snapshot, error) {
	log := l.Log
	if log == nil {
		log = zap.NewNop()
	}
	l.setState(StateLoading, nil)
	snap, err := l.Fetch(ctx, orgID, planID)
	if err != nil {
		log.Warn("snapshot fetch failed, retrying",
			zap.String("org", orgID), zap.String("plan", planID), zap.Error(err))
		snap, err = l.Fetch(ctx, orgID, planID)
	}
	if err != nil {
		log.Error("snapshot fetch failed",
			zap.String("org", orgID), zap.String("plan", planID), zap.Error(err))
		l.setState(StateFailed, err)
		return rollup.Snapshot{}, err
	}
	l.setState(StateReady, nil)
	return snap, nil
}
