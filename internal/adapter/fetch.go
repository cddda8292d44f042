package adapter

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"who-is-live/internal/domain"
)

// fetchEach runs fetch for every identity with at most limit queries in
// flight. The result has one record per identity in input order.
func fetchEach(ctx context.Context, identities []domain.Identity, limit int, fetch func(context.Context, domain.Identity) domain.StreamerStatus) []domain.StreamerStatus {
	out := make([]domain.StreamerStatus, len(identities))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range identities {
		g.Go(func() error {
			out[i] = fetch(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// dedupe drops identities whose name was already seen, keeping the first
func dedupe(identities []domain.Identity) []domain.Identity {
	seen := make(map[string]struct{}, len(identities))
	out := make([]domain.Identity, 0, len(identities))
	for _, id := range identities {
		if _, ok := seen[id.Name]; ok {
			continue
		}
		seen[id.Name] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolve returns the roster identity whose name matches name
// case-insensitively, or an identity looked up by name itself
func resolve(identities []domain.Identity, name string) (domain.Identity, bool) {
	for _, id := range identities {
		if strings.EqualFold(id.Name, name) {
			return id, true
		}
	}
	return domain.Identity{Name: name}, false
}
