package archive

import (
	"context"
	"sync"
	"time"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	"github.com/eldermoor/saveline/internal/archive/storage"
)

// fakeHotStore is an in-memory single-slot store with fault injection.
type fakeHotStore struct {
	mu     sync.Mutex
	snaps  map[string]snapshot.Snapshot
	getErr error
	putErr error
}

func newFakeHotStore() *fakeHotStore {
	return &fakeHotStore{snaps: map[string]snapshot.Snapshot{}}
}

func (f *fakeHotStore) PutCurrent(_ context.Context, snap snapshot.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.snaps[snap.CampaignID] = snap
	return nil
}

func (f *fakeHotStore) GetCurrent(_ context.Context, campaignID string) (snapshot.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return snapshot.Snapshot{}, f.getErr
	}
	snap, ok := f.snaps[campaignID]
	if !ok {
		return snapshot.Snapshot{}, storage.ErrNotFound
	}
	return snap, nil
}

func (f *fakeHotStore) RemoveCurrent(_ context.Context, campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, campaignID)
	return nil
}

func (f *fakeHotStore) Close() error { return nil }

type coldRecord struct {
	entry storage.ColdEntry
	blob  []byte
}

// fakeColdStore is an in-memory blob archive preserving insertion order as
// its native listing order. Delete removes the oldest-inserted record for a
// timestamp, which lets tests exercise the equal-timestamp tie-break the way
// a backend with insertion-suffixed keys would behave.
type fakeColdStore struct {
	mu        sync.Mutex
	records   map[string][]coldRecord // campaignID -> native order
	putErr    error
	getErr    error
	listErr   error
	deleteErr error
}

func newFakeColdStore() *fakeColdStore {
	return &fakeColdStore{records: map[string][]coldRecord{}}
}

func (f *fakeColdStore) Put(_ context.Context, entry storage.ColdEntry, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	records := f.records[entry.CampaignID]
	for i, rec := range records {
		if rec.entry.SavedAt.Equal(entry.SavedAt) {
			records[i] = coldRecord{entry: entry, blob: blob}
			return nil
		}
	}
	f.records[entry.CampaignID] = append(records, coldRecord{entry: entry, blob: blob})
	return nil
}

func (f *fakeColdStore) Get(_ context.Context, campaignID string, savedAt time.Time) ([]byte, storage.ColdEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, storage.ColdEntry{}, f.getErr
	}
	for _, rec := range f.records[campaignID] {
		if rec.entry.SavedAt.Equal(savedAt) {
			return rec.blob, rec.entry, nil
		}
	}
	return nil, storage.ColdEntry{}, storage.ErrNotFound
}

func (f *fakeColdStore) List(_ context.Context, campaignID string) ([]storage.ColdEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	records := f.records[campaignID]
	entries := make([]storage.ColdEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.entry)
	}
	return entries, nil
}

func (f *fakeColdStore) Delete(_ context.Context, campaignID string, savedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	records := f.records[campaignID]
	for i, rec := range records {
		if rec.entry.SavedAt.Equal(savedAt) {
			f.records[campaignID] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	// already absent: idempotent
	return nil
}

// fakeReporter records degradation callbacks.
type fakeReporter struct {
	mu     sync.Mutex
	errors []error
}

func (f *fakeReporter) ArchiveDegraded(_ context.Context, _ string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, err)
}

func (f *fakeReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}
