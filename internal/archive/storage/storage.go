// Package storage defines persistence interfaces for the save archive tiers.
//
// The hot tier holds exactly one uncompressed "current" snapshot per campaign
// and is optimized for read/write latency. The cold tier is an object-store
// style blob archive of historical snapshots keyed by campaign and timestamp.
// Implementations (SQLite, Redis, filesystem, GCS) live in subpackages.
//
// Common error types:
//   - ErrNotFound: requested current or timestamped save is missing
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

// ErrNotFound indicates a requested save is missing. Callers use this to
// differentiate legitimate "never saved" states from transport failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "save not found")

// ColdEntry describes one archived save blob and its tier-native metadata.
type ColdEntry struct {
	CampaignID  string
	SavedAt     time.Time
	SaveName    string
	ContentType string
}

// HotStore is single-slot current-snapshot storage per campaign.
type HotStore interface {
	// PutCurrent overwrites the current snapshot for snap.CampaignID. The hot
	// store retains no history; demotion of the displaced snapshot is the
	// archive manager's job.
	PutCurrent(ctx context.Context, snap snapshot.Snapshot) error
	// GetCurrent returns ErrNotFound when the campaign has never been saved.
	GetCurrent(ctx context.Context, campaignID string) (snapshot.Snapshot, error)
	// RemoveCurrent deletes the current snapshot. Only campaign-level
	// deletion uses it; normal retention never touches the hot slot.
	RemoveCurrent(ctx context.Context, campaignID string) error
	// Close releases the backing connection.
	Close() error
}

// ColdStore is durable, listable, individually deletable blob storage for
// historical snapshots keyed by (campaignID, savedAt). Writes to distinct
// keys must not corrupt each other; same-key writes are last-writer-wins.
type ColdStore interface {
	// Put writes a new archive entry.
	Put(ctx context.Context, entry ColdEntry, blob []byte) error
	// Get returns the blob and its metadata, or ErrNotFound.
	Get(ctx context.Context, campaignID string, savedAt time.Time) ([]byte, ColdEntry, error)
	// List enumerates all entries for a campaign. Order is unspecified from
	// this layer beyond being stable; callers sort.
	List(ctx context.Context, campaignID string) ([]ColdEntry, error)
	// Delete is idempotent: removing a non-existent entry is not an error.
	Delete(ctx context.Context, campaignID string, savedAt time.Time) error
}

// Key returns the cold-tier object key for a campaign save.
func Key(campaignID string, savedAt time.Time) string {
	return fmt.Sprintf("%s/save_%d", campaignID, savedAt.UTC().UnixMilli())
}
