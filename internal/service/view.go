package service

import (
	"strings"

	"who-is-live/internal/domain"
)

// OfflinePageSize is the number of offline records shown before expanding
const OfflinePageSize = 3

// BuildView filters a snapshot for display. It does not modify snap.
//
// Search matches names case-insensitively within each partition. The status
// filter hides the live or offline section; banned is always shown. The
// offline list is capped at OfflinePageSize unless the query asks for all of
// it and still refers to the current snapshot.
func BuildView(snap *domain.Snapshot, q domain.ViewQuery) domain.View {
	v := domain.View{
		Live:    []domain.StreamerStatus{},
		Offline: []domain.StreamerStatus{},
		Banned:  []domain.StreamerStatus{},
	}
	if snap == nil {
		return v
	}

	filter := q.Filter
	if filter == "" {
		filter = domain.FilterAll
	}

	v.SnapshotID = snap.ID
	v.CompletedAt = snap.CompletedAt
	v.Stale = snap.Stale
	v.ShowLive = filter != domain.FilterOffline
	v.ShowOffline = filter != domain.FilterLive

	search := strings.ToLower(q.Search)

	if v.ShowLive {
		v.Live = matchName(snap.Partitions.Live, search)
	}
	v.Banned = matchName(snap.Partitions.Banned, search)

	if v.ShowOffline {
		offline := matchName(snap.Partitions.Offline, search)
		v.Counts.Offline = len(offline)
		v.HasMoreOffline = len(offline) > OfflinePageSize
		v.ShowingAll = q.ShowAllOffline && q.SnapshotID == snap.ID
		if !v.ShowingAll && len(offline) > OfflinePageSize {
			offline = offline[:OfflinePageSize]
		}
		v.Offline = offline
	}

	v.Counts.Live = len(v.Live)
	v.Counts.Banned = len(v.Banned)
	return v
}

func matchName(records []domain.StreamerStatus, search string) []domain.StreamerStatus {
	out := make([]domain.StreamerStatus, 0, len(records))
	for _, r := range records {
		if search == "" || strings.Contains(strings.ToLower(r.Name), search) {
			out = append(out, r)
		}
	}
	return out
}
