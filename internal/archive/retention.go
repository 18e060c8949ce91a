package archive

import (
	"context"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/eldermoor/saveline/internal/archive/storage"
	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

// DefaultMaxGenerations is the default save-generation cap per campaign:
// the current snapshot plus nine archived ones.
const DefaultMaxGenerations = 10

// RetentionPolicy bounds how many archived generations a campaign keeps,
// evicting oldest-first.
type RetentionPolicy struct {
	// MaxGenerations counts the current save plus archived history (N).
	// Zero or negative means DefaultMaxGenerations. A value of 1 keeps only
	// the current save; pruning evicts the whole archived tier.
	MaxGenerations int
}

func (p RetentionPolicy) maxArchived() int {
	n := p.MaxGenerations
	if n <= 0 {
		n = DefaultMaxGenerations
	}
	return n - 1
}

// Prune evicts the oldest archived entries so that one more demotion stays
// within the cap. It runs before the demotion write, so the cold tier is
// never over budget by more than the entry being added.
//
// Eviction deletes target independent keys and run concurrently.
// Prune returns how many entries were actually removed; the count is valid
// even when an eviction error is returned alongside it.
func (p RetentionPolicy) Prune(ctx context.Context, cold storage.ColdStore, campaignID string) (int, error) {
	entries, err := cold.List(ctx, campaignID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeEvictionFailed, "list archived saves for pruning", err)
	}

	maxArchived := p.maxArchived()
	if len(entries) < maxArchived {
		return 0, nil
	}

	// Stable sort: entries with equal timestamps keep the archive's native
	// listing order, so the tie-break is deterministic and testable.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SavedAt.Before(entries[j].SavedAt)
	})

	overflow := len(entries) - (maxArchived - 1)
	if overflow > len(entries) {
		overflow = len(entries)
	}
	victims := entries[:overflow]

	var evicted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, victim := range victims {
		g.Go(func() error {
			if err := cold.Delete(gctx, victim.CampaignID, victim.SavedAt); err != nil {
				return err
			}
			evicted.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(evicted.Load()), apperrors.Wrap(apperrors.CodeEvictionFailed, "evict archived saves", err)
	}
	return int(evicted.Load()), nil
}
