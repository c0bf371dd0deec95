package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roeyazroel/linear-sync/internal/cache"
	"github.com/roeyazroel/linear-sync/internal/logger"
	"github.com/roeyazroel/linear-sync/internal/retry"
)

// resource describes one cached family member.
type resource[T any] struct {
	key string
	ttl time.Duration
	// fetchAll loads the complete value.
	fetchAll func(ctx context.Context) (T, error)
	// fetchDelta loads what changed since the marker. Optional; requires merge.
	fetchDelta func(ctx context.Context, since time.Time) (T, error)
	merge      func(base, delta T) T
}

// getOrRefresh is the read-through algorithm shared by every read operation.
// Returned values are shared with the cache and must not be modified.
func getOrRefresh[T any](ctx context.Context, e *Engine, r resource[T]) (T, error) {
	var zero T
	cached, _, status := cache.InspectAs[T](e.store, r.key, r.ttl)

	if status == cache.Fresh {
		logger.Debug("engine.sync: hit key=%s", r.key)
		if r.fetchDelta != nil {
			if since, ok := e.marker(r.key); ok {
				scheduleRefresh(e, r, since)
			}
		}
		return cached, nil
	}

	// An expired entry stays in the store until the refetch resolves, so
	// the leader's fallback below serves every caller sharing the fetch.
	logger.Debug("engine.sync: miss key=%s status=%s", r.key, status)
	v, err, shared := e.flight.Do(r.key, func() (any, error) {
		start := e.now()
		data, err := retry.Do(ctx, e.cfg.Retry, r.fetchAll)
		if err != nil {
			return fallback(e, r, err)
		}
		e.store.Set(r.key, data, start)
		e.setMarker(r.key, start)
		return data, nil
	})
	if err != nil {
		return zero, err
	}
	if shared {
		logger.Debug("engine.sync: shared in-flight fetch key=%s", r.key)
	}

	data, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("engine: unexpected value %T for key %s", v, r.key)
	}
	return data, nil
}

// fallback resolves a failed fetch from whatever the store still holds for
// r.key: an expired value is served as stale, a value written meanwhile is
// served as is, and nothing at all propagates err.
func fallback[T any](e *Engine, r resource[T], err error) (any, error) {
	cached, _, status := cache.InspectAs[T](e.store, r.key, r.ttl)
	switch status {
	case cache.Expired:
		e.stale(r.key, err)
		return cached, nil
	case cache.Fresh:
		return cached, nil
	default:
		return nil, err
	}
}

func (e *Engine) stale(key string, err error) {
	logger.Warning("engine.sync: serving stale value key=%s error=%v", key, err)
	if e.cfg.OnStale != nil {
		e.cfg.OnStale(key, err)
	}
}

// scheduleRefresh starts a background delta refresh for r unless one is
// already running for the same key.
func scheduleRefresh[T any](e *Engine, r resource[T], since time.Time) {
	e.mu.Lock()
	if e.refreshing[r.key] {
		e.mu.Unlock()
		logger.Debug("engine.sync: refresh already running key=%s", r.key)
		return
	}
	e.refreshing[r.key] = true
	e.background.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.background.Done()
		defer func() {
			e.mu.Lock()
			delete(e.refreshing, r.key)
			e.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("engine.sync: background refresh panicked key=%s panic=%v", r.key, rec)
			}
		}()

		if err := refresh(context.Background(), e, r, since); err != nil {
			logger.Warning("engine.sync: background refresh failed key=%s error=%v", r.key, err)
		}
	}()
}

// refresh fetches the delta since the marker and merges it into the current
// entry. A key deleted or overwritten during the fetch is left alone.
func refresh[T any](ctx context.Context, e *Engine, r resource[T], since time.Time) error {
	start := e.now()
	logger.Debug("engine.sync: delta refresh key=%s since=%s", r.key, since.Format(time.RFC3339))

	delta, err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) (T, error) {
		return r.fetchDelta(ctx, since)
	})
	if err != nil {
		return err
	}

	entry, ok := e.store.Peek(r.key)
	if !ok {
		logger.Debug("engine.sync: key invalidated during refresh key=%s", r.key)
		return nil
	}
	base, err := cache.Decode[T](entry.Data)
	if err != nil {
		return fmt.Errorf("decode cached value: %w", err)
	}

	if !e.store.Replace(r.key, entry.StoredAt, r.merge(base, delta), start) {
		logger.Debug("engine.sync: key changed during refresh key=%s", r.key)
		return nil
	}
	e.setMarker(r.key, start)
	return nil
}
