package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/eldermoor/saveline/internal/archive/storage"
	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

func seedColdEntries(t *testing.T, cold *fakeColdStore, campaignID string, millis ...int64) {
	t.Helper()
	for _, ms := range millis {
		entry := storage.ColdEntry{
			CampaignID:  campaignID,
			SavedAt:     time.UnixMilli(ms).UTC(),
			SaveName:    fmt.Sprintf("save-%d", ms),
			ContentType: "application/gzip",
		}
		if err := cold.Put(context.Background(), entry, []byte("blob")); err != nil {
			t.Fatalf("seed entry %d: %v", ms, err)
		}
	}
}

func coldMillis(t *testing.T, cold *fakeColdStore, campaignID string) []int64 {
	t.Helper()
	entries, err := cold.List(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	millis := make([]int64, 0, len(entries))
	for _, entry := range entries {
		millis = append(millis, entry.SavedAt.UnixMilli())
	}
	return millis
}

func TestPruneBelowCapIsNoop(t *testing.T) {
	cold := newFakeColdStore()
	seedColdEntries(t, cold, "c1", 1000, 2000, 3000)

	evicted, err := RetentionPolicy{}.Prune(context.Background(), cold, "c1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if evicted != 0 {
		t.Fatalf("expected no evictions, got %d", evicted)
	}
	if got := coldMillis(t, cold, "c1"); len(got) != 3 {
		t.Fatalf("entries changed: %v", got)
	}
}

func TestPruneAtCapEvictsOldest(t *testing.T) {
	cold := newFakeColdStore()
	// nine entries, the cap for the default policy
	var millis []int64
	for i := int64(1); i <= 9; i++ {
		millis = append(millis, i*1000)
	}
	seedColdEntries(t, cold, "c1", millis...)

	evicted, err := RetentionPolicy{}.Prune(context.Background(), cold, "c1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	remaining := coldMillis(t, cold, "c1")
	if len(remaining) != 8 {
		t.Fatalf("expected 8 survivors, got %v", remaining)
	}
	for _, ms := range remaining {
		if ms == 1000 {
			t.Fatalf("oldest entry survived: %v", remaining)
		}
	}
}

func TestPruneOverflowEvictsOldestFirst(t *testing.T) {
	cold := newFakeColdStore()
	// an over-budget archive, as left behind by earlier eviction failures
	seedColdEntries(t, cold, "c1", 5000, 1000, 12000, 3000, 9000, 7000,
		2000, 11000, 4000, 8000, 6000, 10000)

	policy := RetentionPolicy{MaxGenerations: 10}
	evicted, err := policy.Prune(context.Background(), cold, "c1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	// 12 entries, room needed for one more demotion against a cap of 9
	if evicted != 4 {
		t.Fatalf("expected 4 evictions, got %d", evicted)
	}

	remaining := coldMillis(t, cold, "c1")
	if len(remaining) != 8 {
		t.Fatalf("expected 8 survivors, got %v", remaining)
	}
	for _, ms := range remaining {
		if ms <= 4000 {
			t.Fatalf("expected the four oldest entries evicted, found %d in %v", ms, remaining)
		}
	}
}

func TestPruneEqualTimestampsFollowNativeOrder(t *testing.T) {
	cold := newFakeColdStore()
	entry := func(ms int64, name string) storage.ColdEntry {
		return storage.ColdEntry{
			CampaignID:  "c1",
			SavedAt:     time.UnixMilli(ms).UTC(),
			SaveName:    name,
			ContentType: "application/gzip",
		}
	}
	// the fake keys records by insertion, so two same-timestamp entries can
	// coexist the way a suffix-keyed backend would hold them
	cold.records["c1"] = []coldRecord{
		{entry: entry(1000, "first-listed"), blob: []byte("a")},
		{entry: entry(1000, "second-listed"), blob: []byte("b")},
		{entry: entry(2000, "newer"), blob: []byte("c")},
	}

	policy := RetentionPolicy{MaxGenerations: 4}
	evicted, err := policy.Prune(context.Background(), cold, "c1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	entries, err := cold.List(context.Background(), "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 survivors, got %v", entries)
	}
	if entries[0].SaveName != "second-listed" {
		t.Fatalf("expected the earlier-listed tie to be evicted, survivors %v", entries)
	}
}

func TestPruneWrapsListFailure(t *testing.T) {
	cold := newFakeColdStore()
	cold.listErr = errors.New("bucket listing timed out")

	_, err := RetentionPolicy{}.Prune(context.Background(), cold, "c1")
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeEvictionFailed {
		t.Fatalf("expected eviction-failed code, got %v", err)
	}
}

func TestPruneReportsPartialEvictions(t *testing.T) {
	cold := newFakeColdStore()
	var millis []int64
	for i := int64(1); i <= 9; i++ {
		millis = append(millis, i*1000)
	}
	seedColdEntries(t, cold, "c1", millis...)
	cold.deleteErr = errors.New("delete forbidden")

	evicted, err := RetentionPolicy{}.Prune(context.Background(), cold, "c1")
	if err == nil {
		t.Fatalf("expected eviction error")
	}
	if evicted != 0 {
		t.Fatalf("expected no successful evictions, got %d", evicted)
	}
	if got := coldMillis(t, cold, "c1"); len(got) != 9 {
		t.Fatalf("entries changed despite failed deletes: %v", got)
	}
}

func TestPruneSingleGenerationEvictsAll(t *testing.T) {
	cold := newFakeColdStore()
	seedColdEntries(t, cold, "c1", 1000)

	policy := RetentionPolicy{MaxGenerations: 1}
	evicted, err := policy.Prune(context.Background(), cold, "c1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if got := coldMillis(t, cold, "c1"); len(got) != 0 {
		t.Fatalf("expected empty archive, got %v", got)
	}
}

func TestPruneSingleGenerationEmptyArchive(t *testing.T) {
	cold := newFakeColdStore()

	policy := RetentionPolicy{MaxGenerations: 1}
	evicted, err := policy.Prune(context.Background(), cold, "c1")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if evicted != 0 {
		t.Fatalf("expected no evictions, got %d", evicted)
	}
}

func TestZeroPolicyUsesDefault(t *testing.T) {
	if got := (RetentionPolicy{}).maxArchived(); got != DefaultMaxGenerations-1 {
		t.Fatalf("expected default cap %d, got %d", DefaultMaxGenerations-1, got)
	}
	if got := (RetentionPolicy{MaxGenerations: 3}).maxArchived(); got != 2 {
		t.Fatalf("expected cap 2, got %d", got)
	}
	if got := (RetentionPolicy{MaxGenerations: 1}).maxArchived(); got != 0 {
		t.Fatalf("expected cap 0, got %d", got)
	}
}
