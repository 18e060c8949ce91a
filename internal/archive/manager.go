package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/eldermoor/saveline/internal/archive/codec"
	"github.com/eldermoor/saveline/internal/archive/snapshot"
	"github.com/eldermoor/saveline/internal/archive/storage"
	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

// Tier identifies which storage tier holds a save.
type Tier string

const (
	TierHot  Tier = "hot"
	TierCold Tier = "cold"
)

// SaveMetadata is the listing projection of one save. It is derived from the
// tier's native metadata, never stored independently.
type SaveMetadata struct {
	SaveName   string
	SavedAt    time.Time
	Compressed bool
	Tier       Tier
}

// Reporter receives non-fatal archive maintenance failures so the calling
// layer can surface a degraded-history warning instead of losing the signal
// in logs.
type Reporter interface {
	ArchiveDegraded(ctx context.Context, campaignID string, err error)
}

// SaveReport describes what one save actually did beyond writing the current
// snapshot.
type SaveReport struct {
	// Demoted is true when the previous current snapshot reached the cold tier.
	Demoted bool
	// Evicted counts retention deletions performed during this save.
	Evicted int
	// ArchiveErr carries demotion or eviction failures that did not abort the
	// save. It is nil on a fully clean save.
	ArchiveErr error
}

// Manager composes the codec, hot store, cold archive, and retention policy
// into the public save/load/list/delete operations.
type Manager struct {
	hot       storage.HotStore
	cold      storage.ColdStore
	codec     *codec.Codec
	retention RetentionPolicy
	reporter  Reporter
	tracer    trace.Tracer
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetention overrides the default retention policy.
func WithRetention(policy RetentionPolicy) Option {
	return func(m *Manager) { m.retention = policy }
}

// WithReporter registers a receiver for non-fatal maintenance failures.
func WithReporter(reporter Reporter) Option {
	return func(m *Manager) { m.reporter = reporter }
}

// NewManager builds an archive manager over the given tiers.
func NewManager(hot storage.HotStore, cold storage.ColdStore, c *codec.Codec, opts ...Option) *Manager {
	m := &Manager{
		hot:       hot,
		cold:      cold,
		codec:     c,
		retention: RetentionPolicy{MaxGenerations: DefaultMaxGenerations},
		tracer:    otel.Tracer("saveline/archive"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Save persists snap as the campaign's current snapshot. If a current
// snapshot already exists it is demoted into the cold archive first:
// compressed, pruned within the retention bound, and keyed by its own
// creation timestamp.
//
// Demotion and pruning are best-effort: their failures are returned in the
// SaveReport (and forwarded to the Reporter) while the hot-store write still
// proceeds. Only a hot-store write failure fails the save.
func (m *Manager) Save(ctx context.Context, snap snapshot.Snapshot) (SaveReport, error) {
	ctx, span := m.tracer.Start(ctx, "archive.Save",
		trace.WithAttributes(attribute.String("campaign.id", snap.CampaignID)))
	defer span.End()

	if err := snap.Validate(); err != nil {
		return SaveReport{}, err
	}

	var report SaveReport
	prev, err := m.hot.GetCurrent(ctx, snap.CampaignID)
	switch {
	case err == nil:
		if archiveErr := m.demote(ctx, prev, &report); archiveErr != nil {
			report.ArchiveErr = archiveErr
		}
	case errors.Is(err, storage.ErrNotFound):
		// first save for this campaign
	default:
		// the previous snapshot could not even be read; the new save still
		// goes through, this generation just is not archived
		report.ArchiveErr = fmt.Errorf("read previous save: %w", err)
	}

	if report.ArchiveErr != nil {
		span.RecordError(report.ArchiveErr)
		if m.reporter != nil {
			m.reporter.ArchiveDegraded(ctx, snap.CampaignID, report.ArchiveErr)
		}
	}

	if err := m.hot.PutCurrent(ctx, snap); err != nil {
		return report, apperrors.Wrap(apperrors.CodeBackingStore, "write current save", err)
	}
	return report, nil
}

// demote compresses prev into the cold tier after pruning makes room for it.
// A prune failure does not block the demotion write; the save retries cleanup
// next time.
func (m *Manager) demote(ctx context.Context, prev snapshot.Snapshot, report *SaveReport) error {
	blob, contentType, err := m.codec.Pack(prev)
	if err != nil {
		return fmt.Errorf("pack previous save: %w", err)
	}

	evicted, pruneErr := m.retention.Prune(ctx, m.cold, prev.CampaignID)
	report.Evicted = evicted

	entry := storage.ColdEntry{
		CampaignID:  prev.CampaignID,
		SavedAt:     prev.CreatedAt,
		SaveName:    prev.SaveName,
		ContentType: contentType,
	}
	if err := m.cold.Put(ctx, entry, blob); err != nil {
		putErr := fmt.Errorf("archive previous save: %w", err)
		if pruneErr != nil {
			return errors.Join(pruneErr, putErr)
		}
		return putErr
	}
	report.Demoted = true
	return pruneErr
}

// Load returns the campaign's current snapshot from the hot tier.
// It returns storage.ErrNotFound when the campaign has never been saved.
func (m *Manager) Load(ctx context.Context, campaignID string) (snapshot.Snapshot, error) {
	ctx, span := m.tracer.Start(ctx, "archive.Load",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if strings.TrimSpace(campaignID) == "" {
		return snapshot.Snapshot{}, apperrors.New(apperrors.CodeSnapshotCampaignIDEmpty, "campaign id is required")
	}
	return m.hot.GetCurrent(ctx, campaignID)
}

// LoadAt returns the archived snapshot saved at the given timestamp.
// It returns storage.ErrNotFound if the key is absent and a corrupt-archive
// error if the blob cannot be decoded; the entry stays in place either way.
func (m *Manager) LoadAt(ctx context.Context, campaignID string, savedAt time.Time) (snapshot.Snapshot, error) {
	ctx, span := m.tracer.Start(ctx, "archive.LoadAt",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if strings.TrimSpace(campaignID) == "" {
		return snapshot.Snapshot{}, apperrors.New(apperrors.CodeSnapshotCampaignIDEmpty, "campaign id is required")
	}

	blob, entry, err := m.cold.Get(ctx, campaignID, savedAt)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return m.codec.Decode(blob, entry.ContentType)
}

// List merges the hot entry (at most one) with all surviving cold entries,
// sorted descending by SavedAt. The ordering is a contract: UIs render the
// result directly. Equal timestamps list the hot entry first, then cold
// entries in the archive's native order.
func (m *Manager) List(ctx context.Context, campaignID string) ([]SaveMetadata, error) {
	ctx, span := m.tracer.Start(ctx, "archive.List",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if strings.TrimSpace(campaignID) == "" {
		return nil, apperrors.New(apperrors.CodeSnapshotCampaignIDEmpty, "campaign id is required")
	}

	var saves []SaveMetadata
	current, err := m.hot.GetCurrent(ctx, campaignID)
	switch {
	case err == nil:
		saves = append(saves, SaveMetadata{
			SaveName:   current.SaveName,
			SavedAt:    current.CreatedAt,
			Compressed: false,
			Tier:       TierHot,
		})
	case errors.Is(err, storage.ErrNotFound):
		// no saves yet; cold tier may still hold orphans worth listing
	default:
		return nil, err
	}

	entries, err := m.cold.List(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		saves = append(saves, SaveMetadata{
			SaveName:   entry.SaveName,
			SavedAt:    entry.SavedAt,
			Compressed: entry.ContentType == codec.ContentTypeGzip,
			Tier:       TierCold,
		})
	}

	sort.SliceStable(saves, func(i, j int) bool {
		return saves[i].SavedAt.After(saves[j].SavedAt)
	})
	return saves, nil
}

// Delete removes one cold entry. Deleting the current save is out of scope;
// campaign-level deletion is handled by the surrounding application through
// HotStore.RemoveCurrent. Delete is idempotent.
func (m *Manager) Delete(ctx context.Context, campaignID string, savedAt time.Time) error {
	ctx, span := m.tracer.Start(ctx, "archive.Delete",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if strings.TrimSpace(campaignID) == "" {
		return apperrors.New(apperrors.CodeSnapshotCampaignIDEmpty, "campaign id is required")
	}
	return m.cold.Delete(ctx, campaignID, savedAt)
}

// Export writes the campaign's current snapshot to w in the plain encoded
// form used for user-facing save downloads.
func (m *Manager) Export(ctx context.Context, w io.Writer, campaignID string) error {
	snap, err := m.Load(ctx, campaignID)
	if err != nil {
		return err
	}
	return m.export(w, snap)
}

// ExportAt writes the archived snapshot saved at the given timestamp to w.
func (m *Manager) ExportAt(ctx context.Context, w io.Writer, campaignID string, savedAt time.Time) error {
	snap, err := m.LoadAt(ctx, campaignID, savedAt)
	if err != nil {
		return err
	}
	return m.export(w, snap)
}

func (m *Manager) export(w io.Writer, snap snapshot.Snapshot) error {
	data, err := m.codec.Encode(snap)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
