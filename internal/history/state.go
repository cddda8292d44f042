// Package history keeps the state that must survive between refresh cycles
// and process restarts: last-seen times, previous viewer counts, durable
// banned sets, the previous cycle's banned identities and the last snapshot.
//
// Everything is stored as strings in a domain.HistoryStore. Values that fail
// to decode are logged and treated as absent.
package history

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

const (
	lastSeenPrefix    = "lastSeen:"
	viewersPrefix     = "viewers:"
	bannedPrefix      = "banned:"
	previousBannedKey = "previousBanned"
	lastSnapshotKey   = "snapshot:last"
)

// State is a typed view over a HistoryStore
type State struct {
	store domain.HistoryStore
	log   *logger.Logger

	// bannedMu serializes read-modify-write of the durable banned sets,
	// which adapters update from concurrent per-identity fetches
	bannedMu sync.Mutex
}

// New creates a State backed by store
func New(store domain.HistoryStore, log *logger.Logger) *State {
	if log == nil {
		log = logger.Nop()
	}
	return &State{store: store, log: log}
}

func (s *State) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("history read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return "", false
	}
	return v, ok
}

func (s *State) malformed(key, value string, err error) {
	s.log.Warn("ignoring malformed history value", map[string]interface{}{
		"key":   key,
		"value": value,
		"error": err.Error(),
	})
}

// LastSeen returns the last time the identity was observed live
func (s *State) LastSeen(ctx context.Context, key domain.IdentityKey) (time.Time, bool) {
	k := lastSeenPrefix + key.String()
	v, ok := s.get(ctx, k)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.malformed(k, v, err)
		return time.Time{}, false
	}
	return t, true
}

// SetLastSeen records t as the last time the identity was observed live
func (s *State) SetLastSeen(ctx context.Context, key domain.IdentityKey, t time.Time) error {
	return s.store.Set(ctx, lastSeenPrefix+key.String(), t.UTC().Format(time.RFC3339Nano))
}

// PreviousViewers returns the viewer count stored for the identity by the
// previous live observation
func (s *State) PreviousViewers(ctx context.Context, key domain.IdentityKey) (int, bool) {
	k := viewersPrefix + key.String()
	v, ok := s.get(ctx, k)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		if err == nil {
			err = strconv.ErrRange
		}
		s.malformed(k, v, err)
		return 0, false
	}
	return n, true
}

// SetPreviousViewers stores the viewer count used for the next trend
func (s *State) SetPreviousViewers(ctx context.Context, key domain.IdentityKey, viewers int) error {
	return s.store.Set(ctx, viewersPrefix+key.String(), strconv.Itoa(viewers))
}

func (s *State) readNames(ctx context.Context, key string) []string {
	v, ok := s.get(ctx, key)
	if !ok {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		s.malformed(key, v, err)
		return nil
	}
	return names
}

func (s *State) writeNames(ctx context.Context, key string, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, string(data))
}

// BannedSet returns the durable banned names for platform, sorted
func (s *State) BannedSet(ctx context.Context, platform domain.Platform) []string {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()

	names := s.readNames(ctx, bannedPrefix+string(platform))
	sort.Strings(names)
	return names
}

// AddBanned adds name to the durable banned set of platform.
// It reports whether the set changed.
func (s *State) AddBanned(ctx context.Context, platform domain.Platform, name string) (bool, error) {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()

	key := bannedPrefix + string(platform)
	names := s.readNames(ctx, key)
	for _, n := range names {
		if n == name {
			return false, nil
		}
	}
	names = append(names, name)
	sort.Strings(names)
	return true, s.writeNames(ctx, key, names)
}

// RemoveBanned removes name from the durable banned set of platform.
// It reports whether the set changed.
func (s *State) RemoveBanned(ctx context.Context, platform domain.Platform, name string) (bool, error) {
	s.bannedMu.Lock()
	defer s.bannedMu.Unlock()

	key := bannedPrefix + string(platform)
	names := s.readNames(ctx, key)
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	if len(out) == len(names) {
		return false, nil
	}
	return true, s.writeNames(ctx, key, out)
}

// Forget deletes the last-seen time and previous viewer count of key
func (s *State) Forget(ctx context.Context, key domain.IdentityKey) error {
	if err := s.store.Delete(ctx, lastSeenPrefix+key.String()); err != nil {
		return err
	}
	return s.store.Delete(ctx, viewersPrefix+key.String())
}

// PreviousBanned returns the identities classified as banned in the
// previous refresh cycle
func (s *State) PreviousBanned(ctx context.Context) []domain.IdentityKey {
	encoded := s.readNames(ctx, previousBannedKey)
	keys := make([]domain.IdentityKey, 0, len(encoded))
	for _, e := range encoded {
		k, err := domain.ParseIdentityKey(e)
		if err != nil {
			s.malformed(previousBannedKey, e, err)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// SetPreviousBanned replaces the previous-cycle banned identities
func (s *State) SetPreviousBanned(ctx context.Context, keys []domain.IdentityKey) error {
	encoded := make([]string, 0, len(keys))
	for _, k := range keys {
		encoded = append(encoded, k.String())
	}
	return s.writeNames(ctx, previousBannedKey, encoded)
}

// LastSnapshot returns the most recently persisted snapshot
func (s *State) LastSnapshot(ctx context.Context) (*domain.Snapshot, bool) {
	v, ok := s.get(ctx, lastSnapshotKey)
	if !ok {
		return nil, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(v), &snap); err != nil {
		s.malformed(lastSnapshotKey, "<snapshot>", err)
		return nil, false
	}
	return &snap, true
}

// SaveSnapshot persists snap as the last snapshot
func (s *State) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, lastSnapshotKey, string(data))
}
