// Package cache implements the key/value store behind the sync engine.
//
// Entries carry the time they were stored and an optional sync marker. Expiry
// is lazy: an entry older than the caller's TTL is evicted by the read that
// notices it. Keys under the configured persisted prefixes are written to a
// Storage backend as one full snapshot after every change that touches them,
// and reloaded by Load at startup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roeyazroel/linear-sync/internal/logger"
)

// DefaultNamespace is the storage key the snapshot is saved under.
const DefaultNamespace = "linear-sync.cache"

const snapshotVersion = 1

// ErrSnapshotCorrupt is returned by Load when the stored snapshot cannot be decoded.
var ErrSnapshotCorrupt = errors.New("cache snapshot corrupted")

// Status is the outcome of a Lookup.
type Status int

const (
	// Absent means no entry exists for the key.
	Absent Status = iota
	// Fresh means the entry is within its TTL.
	Fresh
	// Expired means the entry was older than the TTL and has been evicted.
	Expired
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Expired:
		return "expired"
	default:
		return "absent"
	}
}

// Entry is a cached value with its bookkeeping.
type Entry struct {
	// Data is the cached value. After Load it holds json.RawMessage until
	// first decoded with GetAs or Decode.
	Data     any
	StoredAt time.Time
	// SyncMarker is the "changed since" bound for the next delta fetch; zero when unset.
	SyncMarker time.Time
}

// Storage persists cache snapshots between runs.
type Storage interface {
	// Load returns the snapshot saved under namespace, or ok=false if none exists.
	Load(ctx context.Context, namespace string) (data []byte, ok bool, err error)
	// Save replaces the snapshot saved under namespace.
	Save(ctx context.Context, namespace string, data []byte) error
}

// Options configures a Store.
type Options struct {
	// Storage is the durable backend. Nil disables persistence.
	Storage Storage
	// Namespace is the storage key for the snapshot (defaults to DefaultNamespace).
	Namespace string
	// PersistPrefixes lists key prefixes included in the snapshot.
	PersistPrefixes []string
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Store is an in-memory cache with lazy TTL expiry and snapshot persistence.
// It is safe for concurrent use.
type Store struct {
	storage   Storage
	namespace string
	prefixes  []string
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	gen     uint64 // bumped on every change to a persisted key

	saveMu   sync.Mutex
	savedGen uint64
}

// NewStore creates an empty store. Call Load to restore the persisted snapshot.
func NewStore(opts Options) *Store {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		storage:   opts.Storage,
		namespace: ns,
		prefixes:  append([]string(nil), opts.PersistPrefixes...),
		now:       now,
		entries:   make(map[string]Entry),
	}
}

type snapshot struct {
	Version int                      `json:"version"`
	Entries map[string]snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Data           json.RawMessage `json:"data"`
	StoredAt       time.Time       `json:"storedAt"`
	LastSyncMarker *time.Time      `json:"lastSyncMarker,omitempty"`
}

// Load restores persisted entries from storage. Entries already in memory
// are kept. A missing snapshot is not an error; a corrupt one leaves the store
// empty and returns ErrSnapshotCorrupt.
func (s *Store) Load(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	data, ok, err := s.storage.Load(ctx, s.namespace)
	if err != nil {
		logger.ErrorWithErr(err, "cache.store: load snapshot failed namespace=%s", s.namespace)
		return fmt.Errorf("load cache snapshot: %w", err)
	}
	if !ok {
		logger.Debug("cache.store: no snapshot namespace=%s", s.namespace)
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion {
		logger.Warning("cache.store: discarding unreadable snapshot namespace=%s version=%d", s.namespace, snap.Version)
		return ErrSnapshotCorrupt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for key, e := range snap.Entries {
		if !s.persistedLocked(key) {
			continue
		}
		if _, exists := s.entries[key]; exists {
			continue
		}
		entry := Entry{Data: e.Data, StoredAt: e.StoredAt}
		if e.LastSyncMarker != nil {
			entry.SyncMarker = *e.LastSyncMarker
		}
		s.entries[key] = entry
		loaded++
	}
	logger.Debug("cache.store: loaded snapshot namespace=%s entries=%d", s.namespace, loaded)
	return nil
}

// Lookup returns the entry for key and its status under ttl. An expired
// entry is evicted but still returned once with status Expired, so callers
// can fall back to it. A ttl of zero or less never expires.
func (s *Store) Lookup(key string, ttl time.Duration) (Entry, Status) {
	s.mu.Lock()
	e, status := s.statusLocked(key, ttl)
	if status != Expired {
		s.mu.Unlock()
		return e, status
	}

	delete(s.entries, key)
	snap := s.touchLocked(key)
	s.mu.Unlock()

	s.save(snap)
	logger.Debug("cache.store: expired key=%s age=%s", key, s.now().Sub(e.StoredAt))
	return e, Expired
}

// Inspect is Lookup without eviction: an expired entry stays in place until
// it is overwritten or deleted.
func (s *Store) Inspect(key string, ttl time.Duration) (Entry, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(key, ttl)
}

func (s *Store) statusLocked(key string, ttl time.Duration) (Entry, Status) {
	e, ok := s.entries[key]
	switch {
	case !ok:
		return Entry{}, Absent
	case ttl <= 0 || s.now().Sub(e.StoredAt) <= ttl:
		return e, Fresh
	default:
		return e, Expired
	}
}

// Get returns the cached value if it exists and is within ttl.
func (s *Store) Get(key string, ttl time.Duration) (any, bool) {
	e, status := s.Lookup(key, ttl)
	if status != Fresh {
		return nil, false
	}
	return e.Data, true
}

// Peek returns the entry regardless of age without evicting it.
func (s *Store) Peek(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Set stores data under key, replacing any previous entry. A zero marker
// leaves the entry without a sync marker.
func (s *Store) Set(key string, data any, marker time.Time) {
	s.mu.Lock()
	s.entries[key] = Entry{Data: data, StoredAt: s.now(), SyncMarker: marker}
	snap := s.touchLocked(key)
	s.mu.Unlock()

	s.save(snap)
}

// Replace stores data under key only if the current entry is the one stored
// at storedAt. It reports false when the key was deleted or overwritten.
func (s *Store) Replace(key string, storedAt time.Time, data any, marker time.Time) bool {
	s.mu.Lock()
	cur, ok := s.entries[key]
	if !ok || !cur.StoredAt.Equal(storedAt) {
		s.mu.Unlock()
		return false
	}
	s.entries[key] = Entry{Data: data, StoredAt: s.now(), SyncMarker: marker}
	snap := s.touchLocked(key)
	s.mu.Unlock()

	s.save(snap)
	return true
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	if _, ok := s.entries[key]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	snap := s.touchLocked(key)
	s.mu.Unlock()

	s.save(snap)
}

// InvalidateByPrefix removes every key starting with prefix and returns how many were removed.
func (s *Store) InvalidateByPrefix(prefix string) int {
	s.mu.Lock()
	removed := 0
	persisted := false
	for key := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		delete(s.entries, key)
		removed++
		if s.persistedLocked(key) {
			persisted = true
		}
	}
	var snap *pendingSave
	if persisted {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	s.save(snap)
	if removed > 0 {
		logger.Debug("cache.store: invalidated prefix=%s removed=%d", prefix, removed)
	}
	return removed
}

// LastSyncMarker returns the sync marker stored with key.
func (s *Store) LastSyncMarker(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.SyncMarker.IsZero() {
		return time.Time{}, false
	}
	return e.SyncMarker, true
}

// Clear drops every entry and persists the empty snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snap)
	logger.Debug("cache.store: cleared")
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) persistedLocked(key string) bool {
	for _, p := range s.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// replaceData swaps in a decoded value if the entry has not changed since it was read.
func (s *Store) replaceData(key string, storedAt time.Time, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.StoredAt.Equal(storedAt) {
		e.Data = data
		s.entries[key] = e
	}
}

// pendingSave is a serialized snapshot waiting to be written.
type pendingSave struct {
	gen  uint64
	data []byte
}

func (s *Store) touchLocked(key string) *pendingSave {
	if !s.persistedLocked(key) {
		return nil
	}
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *pendingSave {
	if s.storage == nil {
		return nil
	}
	s.gen++

	snap := snapshot{Version: snapshotVersion, Entries: make(map[string]snapshotEntry)}
	for key, e := range s.entries {
		if !s.persistedLocked(key) {
			continue
		}
		raw, err := encodeData(e.Data)
		if err != nil {
			logger.ErrorWithErr(err, "cache.store: skipping unencodable entry key=%s", key)
			continue
		}
		se := snapshotEntry{Data: raw, StoredAt: e.StoredAt}
		if !e.SyncMarker.IsZero() {
			marker := e.SyncMarker
			se.LastSyncMarker = &marker
		}
		snap.Entries[key] = se
	}

	data, err := json.Marshal(snap)
	if err != nil {
		logger.ErrorWithErr(err, "cache.store: encode snapshot failed")
		return nil
	}
	return &pendingSave{gen: s.gen, data: data}
}

// save writes p unless a newer snapshot has already been written.
// Failures are logged only; the in-memory map stays authoritative.
func (s *Store) save(p *pendingSave) {
	if p == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if p.gen <= s.savedGen {
		return
	}
	if err := s.storage.Save(context.Background(), s.namespace, p.data); err != nil {
		logger.ErrorWithErr(err, "cache.store: save snapshot failed namespace=%s", s.namespace)
		return
	}
	s.savedGen = p.gen
}

func encodeData(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

// Decode converts an entry's Data to T, unmarshalling snapshot data if needed.
func Decode[T any](data any) (T, error) {
	var zero T
	if data == nil {
		return zero, nil
	}
	if v, ok := data.(T); ok {
		return v, nil
	}
	raw, ok := data.(json.RawMessage)
	if !ok {
		return zero, fmt.Errorf("cache: value has type %T, want %T", data, zero)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("cache: decode %T: %w", zero, err)
	}
	return v, nil
}

// GetAs returns the fresh value under key decoded as T.
// A value that cannot be decoded is treated as absent.
func GetAs[T any](s *Store, key string, ttl time.Duration) (T, bool) {
	var zero T
	e, status := s.Lookup(key, ttl)
	if status != Fresh {
		return zero, false
	}
	v, _, err := decodeEntry[T](s, key, e)
	if err != nil {
		return zero, false
	}
	return v, true
}

// InspectAs is Inspect with the entry decoded as T. An undecodable entry is
// deleted and reported Absent.
func InspectAs[T any](s *Store, key string, ttl time.Duration) (T, Entry, Status) {
	var zero T
	e, status := s.Inspect(key, ttl)
	if status == Absent {
		return zero, e, Absent
	}
	v, _, err := decodeEntry[T](s, key, e)
	if err != nil {
		logger.Warning("cache.store: dropping undecodable entry key=%s error=%v", key, err)
		s.Delete(key)
		return zero, Entry{}, Absent
	}
	return v, e, status
}

func decodeEntry[T any](s *Store, key string, e Entry) (T, bool, error) {
	_, wasRaw := e.Data.(json.RawMessage)
	v, err := Decode[T](e.Data)
	if err != nil {
		return v, false, err
	}
	if wasRaw {
		s.replaceData(key, e.StoredAt, v)
	}
	return v, wasRaw, nil
}
