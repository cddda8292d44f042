package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Platform identifies a streaming platform
type Platform string

const (
	PlatformKick    Platform = "kick"
	PlatformYouTube Platform = "youtube"
	PlatformTwitch  Platform = "twitch"
	PlatformDLive   Platform = "dlive"
)

// Valid reports whether p is one of the supported platforms
func (p Platform) Valid() bool {
	switch p {
	case PlatformKick, PlatformYouTube, PlatformTwitch, PlatformDLive:
		return true
	}
	return false
}

// ParsePlatform converts a case-insensitive platform name into a Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, s)
	}
	return p, nil
}

// IdentityKey uniquely identifies one streamer's status record.
// Two keys are equal when both platform and name are equal.
type IdentityKey struct {
	Platform Platform
	Name     string
}

// String encodes the key as "platform/escaped-name". The name is path-escaped
// so the encoding stays injective for names containing the separator.
func (k IdentityKey) String() string {
	return string(k.Platform) + "/" + url.PathEscape(k.Name)
}

// ParseIdentityKey decodes a key produced by IdentityKey.String
func ParseIdentityKey(s string) (IdentityKey, error) {
	platform, escaped, ok := strings.Cut(s, "/")
	if !ok {
		return IdentityKey{}, fmt.Errorf("%w: malformed identity key %q", ErrInvalidInput, s)
	}
	p, err := ParsePlatform(platform)
	if err != nil {
		return IdentityKey{}, err
	}
	name, err := url.PathUnescape(escaped)
	if err != nil {
		return IdentityKey{}, fmt.Errorf("%w: malformed identity key %q: %v", ErrInvalidInput, s, err)
	}
	return IdentityKey{Platform: p, Name: name}, nil
}

// Identity is a configured roster entry for one platform.
// ID is the platform-side lookup id (YouTube channel id, Twitch login) and
// falls back to Name when empty.
type Identity struct {
	Name string
	ID   string
}

// LookupID returns the id used to query the platform
func (i Identity) LookupID() string {
	if i.ID != "" {
		return i.ID
	}
	return i.Name
}

// StreamerStatus is the normalized status of one streamer on one platform
// for a single refresh cycle.
type StreamerStatus struct {
	Platform     Platform `json:"platform"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	ImageURL     string   `json:"imageUrl"`
	Link         string   `json:"link"`
	IsLive       bool     `json:"isLive"`
	IsBanned     bool     `json:"isBanned"`
	ViewerCount  int      `json:"viewerCount"`
	BanReason    string   `json:"banReason,omitempty"`
	Category     string   `json:"category,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	FetchError   bool     `json:"fetchError,omitempty"`

	// Annotations computed after classification
	ViewerTrend   int        `json:"viewerTrend"`
	LastSeenAt    *time.Time `json:"lastSeenAt,omitempty"`
	LastSeenText  string     `json:"lastSeenText,omitempty"`
	IsTopStreamer bool       `json:"isTopStreamer"`
}

// Key returns the identity key of the record
func (s StreamerStatus) Key() IdentityKey {
	return IdentityKey{Platform: s.Platform, Name: s.Name}
}

// Partitions holds the three classified lists of a refresh cycle
type Partitions struct {
	Live    []StreamerStatus `json:"live"`
	Offline []StreamerStatus `json:"offline"`
	Banned  []StreamerStatus `json:"banned"`
}

// Len returns the number of records across all partitions
func (p Partitions) Len() int {
	return len(p.Live) + len(p.Offline) + len(p.Banned)
}

// BanTransitions describes banned-state changes between two refresh cycles
type BanTransitions struct {
	NewlyBanned []IdentityKey `json:"-"`
	Unbanned    []IdentityKey `json:"-"`
	// Dropped were banned last cycle but not observed at all this cycle
	Dropped []IdentityKey `json:"-"`
	// Unchecked is the subset of Dropped whose fetch failed this cycle.
	// They remain banned for the next comparison.
	Unchecked []IdentityKey `json:"-"`
}

// AdapterReport summarizes one adapter's contribution to a refresh cycle
type AdapterReport struct {
	Platform Platform      `json:"platform"`
	Count    int           `json:"count"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Failed reports whether the adapter contributed nothing due to an error
func (r AdapterReport) Failed() bool {
	return r.Err != ""
}

// Snapshot is the result of one completed refresh cycle
type Snapshot struct {
	ID          string          `json:"id"`
	CompletedAt time.Time       `json:"completedAt"`
	Partitions  Partitions      `json:"partitions"`
	Transitions BanTransitions  `json:"-"`
	Reports     []AdapterReport `json:"reports"`
	// Stale is set when the snapshot is a previous cycle's result served
	// because the latest cycle failed or the process just restarted
	Stale bool `json:"stale"`
}

// StatusFilter selects which of the live/offline sections are shown
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterLive    StatusFilter = "live"
	FilterOffline StatusFilter = "offline"
)

// ParseStatusFilter converts a filter name, defaulting to FilterAll when empty
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterLive, FilterOffline:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown status filter %q", ErrInvalidInput, s)
	}
}

// ViewQuery holds the presentation state used to build a View
type ViewQuery struct {
	Search         string
	Filter         StatusFilter
	ShowAllOffline bool
	// SnapshotID is the snapshot the client last rendered. ShowAllOffline
	// only applies while it matches the current snapshot.
	SnapshotID string
}

// ViewCounts are the filtered (pre-pagination) list sizes
type ViewCounts struct {
	Live    int `json:"live"`
	Offline int `json:"offline"`
	Banned  int `json:"banned"`
}

// View is the display-ready result of filtering a snapshot
type View struct {
	SnapshotID     string           `json:"snapshotId"`
	CompletedAt    time.Time        `json:"completedAt"`
	Stale          bool             `json:"stale"`
	Live           []StreamerStatus `json:"live"`
	Offline        []StreamerStatus `json:"offline"`
	Banned         []StreamerStatus `json:"banned"`
	Counts         ViewCounts       `json:"counts"`
	ShowLive       bool             `json:"showLive"`
	ShowOffline    bool             `json:"showOffline"`
	ShowingAll     bool             `json:"showingAllOffline"`
	HasMoreOffline bool             `json:"hasMoreOffline"`
}
