package domain

import "context"

// PlatformAdapter queries one platform for the status of its configured
// streamers. FetchAll issues one status query per identity and returns one
// record per identity in roster order. Per-identity failures are degraded to
// error-flagged offline records; a non-nil error means the whole adapter
// failed for this cycle.
type PlatformAdapter interface {
	Platform() Platform
	FetchAll(ctx context.Context) ([]StreamerStatus, error)
}

// HistoryStore is a durable string key-value mapping that survives process
// restarts. Get reports ok=false when the key is absent.
type HistoryStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StatusService is the inbound entry point used by the presentation layer.
// Refresh never fails: adapter and identity failures degrade to partial data
// and a total failure returns the previous snapshot marked stale.
type StatusService interface {
	Refresh(ctx context.Context) *Snapshot
	Latest() *Snapshot
}

// StreamerChecker is implemented by adapters that can query a single
// streamer on demand. Names on the adapter's roster resolve to their
// configured identity; other names are used as the platform lookup id.
// A non-nil error means the platform could not be asked at all.
type StreamerChecker interface {
	Platform() Platform
	FetchOne(ctx context.Context, name string) (StreamerStatus, error)
}

// StreamerLookup checks one streamer outside the refresh cycle
type StreamerLookup interface {
	Lookup(ctx context.Context, platform Platform, name string) (StreamerStatus, error)
}
