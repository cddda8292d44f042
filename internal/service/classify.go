package service

import (
	"sort"
	"time"

	"who-is-live/internal/domain"
)

// LastSeenLookup returns the stored last-seen time of an identity
type LastSeenLookup func(domain.IdentityKey) (time.Time, bool)

// Classify partitions records into live, offline and banned and computes
// banned-state transitions against the previous cycle.
//
// A record is banned when IsBanned is set, live when IsLive is set and it is
// not banned, offline otherwise. Identities banned last cycle but absent from
// records, or present only as a fetch error, are reported as Dropped and
// never appear in the banned partition. The fetch-error ones are also listed
// in Unchecked.
func Classify(records []domain.StreamerStatus, previousBanned []domain.IdentityKey, lastSeen LastSeenLookup) (domain.Partitions, domain.BanTransitions) {
	p := domain.Partitions{
		Live:    []domain.StreamerStatus{},
		Offline: []domain.StreamerStatus{},
		Banned:  []domain.StreamerStatus{},
	}

	// A failed fetch says nothing about ban state, so it does not count as
	// an observation for transitions
	observed := make(map[domain.IdentityKey]bool, len(records))
	failed := make(map[domain.IdentityKey]bool)
	for _, r := range records {
		if r.FetchError {
			failed[r.Key()] = true
		} else {
			observed[r.Key()] = r.IsBanned
		}
		switch {
		case r.IsBanned:
			// banned implies not live
			r.IsLive = false
			r.ViewerCount = 0
			p.Banned = append(p.Banned, r)
		case r.IsLive:
			p.Live = append(p.Live, r)
		default:
			r.ViewerCount = 0
			p.Offline = append(p.Offline, r)
		}
	}

	sort.SliceStable(p.Live, func(i, j int) bool {
		return p.Live[i].ViewerCount > p.Live[j].ViewerCount
	})

	seen := make([]time.Time, len(p.Offline))
	for i, r := range p.Offline {
		if lastSeen != nil {
			if t, ok := lastSeen(r.Key()); ok {
				seen[i] = t
			}
		}
	}
	sortOffline(p.Offline, seen)

	sort.SliceStable(p.Banned, func(i, j int) bool {
		return p.Banned[i].Name < p.Banned[j].Name
	})

	var tr domain.BanTransitions
	wasBanned := make(map[domain.IdentityKey]bool, len(previousBanned))
	for _, k := range previousBanned {
		wasBanned[k] = true
		banned, ok := observed[k]
		switch {
		case !ok:
			tr.Dropped = append(tr.Dropped, k)
			if failed[k] {
				tr.Unchecked = append(tr.Unchecked, k)
			}
		case !banned:
			tr.Unbanned = append(tr.Unbanned, k)
		}
	}
	for _, r := range p.Banned {
		if !wasBanned[r.Key()] {
			tr.NewlyBanned = append(tr.NewlyBanned, r.Key())
		}
	}

	return p, tr
}

// sortOffline orders records by last-seen time, most recent first. A zero
// time sorts as the oldest. The sort is stable.
func sortOffline(records []domain.StreamerStatus, seen []time.Time) {
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return seen[idx[a]].After(seen[idx[b]])
	})

	sorted := make([]domain.StreamerStatus, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

// NextPreviousBanned returns the identities the next cycle compares against:
// the banned partition plus the banned identities that could not be checked
func NextPreviousBanned(p domain.Partitions, tr domain.BanTransitions) []domain.IdentityKey {
	keys := make([]domain.IdentityKey, 0, len(p.Banned)+len(tr.Unchecked))
	for _, r := range p.Banned {
		keys = append(keys, r.Key())
	}
	return append(keys, tr.Unchecked...)
}
