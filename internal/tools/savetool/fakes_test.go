package savetool

import (
	"context"
	"time"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	"github.com/eldermoor/saveline/internal/archive/storage"
)

type fakeHotStore struct {
	snaps  map[string]snapshot.Snapshot
	closed bool
}

func newFakeHotStore() *fakeHotStore {
	return &fakeHotStore{snaps: map[string]snapshot.Snapshot{}}
}

func (f *fakeHotStore) PutCurrent(_ context.Context, snap snapshot.Snapshot) error {
	f.snaps[snap.CampaignID] = snap
	return nil
}

func (f *fakeHotStore) GetCurrent(_ context.Context, campaignID string) (snapshot.Snapshot, error) {
	snap, ok := f.snaps[campaignID]
	if !ok {
		return snapshot.Snapshot{}, storage.ErrNotFound
	}
	return snap, nil
}

func (f *fakeHotStore) RemoveCurrent(_ context.Context, campaignID string) error {
	delete(f.snaps, campaignID)
	return nil
}

func (f *fakeHotStore) Close() error {
	f.closed = true
	return nil
}

type coldRecord struct {
	entry storage.ColdEntry
	blob  []byte
}

type fakeColdStore struct {
	records map[string][]coldRecord
	closed  bool
}

func newFakeColdStore() *fakeColdStore {
	return &fakeColdStore{records: map[string][]coldRecord{}}
}

func (f *fakeColdStore) Put(_ context.Context, entry storage.ColdEntry, blob []byte) error {
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
	for _, rec := range f.records[campaignID] {
		if rec.entry.SavedAt.Equal(savedAt) {
			return rec.blob, rec.entry, nil
		}
	}
	return nil, storage.ColdEntry{}, storage.ErrNotFound
}

func (f *fakeColdStore) List(_ context.Context, campaignID string) ([]storage.ColdEntry, error) {
	records := f.records[campaignID]
	entries := make([]storage.ColdEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec.entry)
	}
	return entries, nil
}

func (f *fakeColdStore) Delete(_ context.Context, campaignID string, savedAt time.Time) error {
	records := f.records[campaignID]
	for i, rec := range records {
		if rec.entry.SavedAt.Equal(savedAt) {
			f.records[campaignID] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeColdStore) Close() error {
	f.closed = true
	return nil
}
