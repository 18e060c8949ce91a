// Package gcsblob provides the Google Cloud Storage cold archive backend
// used by hosted deployments.
package gcsblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/eldermoor/saveline/internal/archive/storage"
)

const (
	metaSaveName = "saveName"
	metaSavedAt  = "savedAt"
)

// bucketHandle abstracts a GCS bucket handle for testability.
type bucketHandle interface {
	Object(name string) objectHandle
	Objects(ctx context.Context, q *gcs.Query) objectIterator
}

// objectIterator abstracts a GCS object iterator.
type objectIterator interface {
	Next() (*gcs.ObjectAttrs, error)
}

// objectHandle abstracts a GCS object handle.
type objectHandle interface {
	Write(ctx context.Context, data []byte, contentType string, metadata map[string]string) error
	NewReader(ctx context.Context) (io.ReadCloser, error)
	Attrs(ctx context.Context) (*gcs.ObjectAttrs, error)
	Delete(ctx context.Context) error
}

// realBucketHandle wraps *gcs.BucketHandle to satisfy bucketHandle.
type realBucketHandle struct{ bh *gcs.BucketHandle }

func (r *realBucketHandle) Object(name string) objectHandle {
	return &realObjectHandle{oh: r.bh.Object(name)}
}

func (r *realBucketHandle) Objects(ctx context.Context, q *gcs.Query) objectIterator {
	return r.bh.Objects(ctx, q)
}

// realObjectHandle wraps *gcs.ObjectHandle to satisfy objectHandle.
type realObjectHandle struct{ oh *gcs.ObjectHandle }

func (r *realObjectHandle) Write(ctx context.Context, data []byte, contentType string, metadata map[string]string) error {
	w := r.oh.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (r *realObjectHandle) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return r.oh.NewReader(ctx)
}

func (r *realObjectHandle) Attrs(ctx context.Context) (*gcs.ObjectAttrs, error) {
	return r.oh.Attrs(ctx)
}

func (r *realObjectHandle) Delete(ctx context.Context) error { return r.oh.Delete(ctx) }

// Store is a cold archive backed by one GCS bucket.
type Store struct {
	client     *gcs.Client
	bucketName string
	testBucket bucketHandle // non-nil only in tests
}

// Open creates a GCS client bound to the given bucket.
func Open(ctx context.Context, bucketName string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Store{client: client, bucketName: bucketName}, nil
}

// newWithBucket injects a bucketHandle, used in tests to avoid real GCS calls.
func newWithBucket(bh bucketHandle) *Store {
	return &Store{testBucket: bh, bucketName: "test"}
}

func (s *Store) bucket() bucketHandle {
	if s.testBucket != nil {
		return s.testBucket
	}
	return &realBucketHandle{bh: s.client.Bucket(s.bucketName)}
}

// Close releases the GCS client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) ready() error {
	if s == nil || (s.client == nil && s.testBucket == nil) {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Put writes a new archive entry. Object metadata carries the save name and
// timestamp so listings do not need to read blobs.
func (s *Store) Put(ctx context.Context, entry storage.ColdEntry, blob []byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	key := storage.Key(entry.CampaignID, entry.SavedAt)
	metadata := map[string]string{
		metaSaveName: entry.SaveName,
		metaSavedAt:  strconv.FormatInt(entry.SavedAt.UTC().UnixMilli(), 10),
	}
	if err := s.bucket().Object(key).Write(ctx, blob, entry.ContentType, metadata); err != nil {
		return fmt.Errorf("write object %q: %w", key, err)
	}
	return nil
}

// Get returns the blob and metadata for one archived save.
func (s *Store) Get(ctx context.Context, campaignID string, savedAt time.Time) ([]byte, storage.ColdEntry, error) {
	if err := s.ready(); err != nil {
		return nil, storage.ColdEntry{}, err
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, storage.ColdEntry{}, fmt.Errorf("campaign id is required")
	}

	key := storage.Key(campaignID, savedAt)
	obj := s.bucket().Object(key)

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, storage.ColdEntry{}, storage.ErrNotFound
		}
		return nil, storage.ColdEntry{}, fmt.Errorf("read object %q: %w", key, err)
	}
	defer r.Close()

	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, storage.ColdEntry{}, fmt.Errorf("read object %q: %w", key, err)
	}

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, storage.ColdEntry{}, fmt.Errorf("read object attrs %q: %w", key, err)
	}
	return blob, entryFromAttrs(campaignID, attrs), nil
}

// List enumerates all archived saves for a campaign, in the bucket's native
// listing order.
func (s *Store) List(ctx context.Context, campaignID string) ([]storage.ColdEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, fmt.Errorf("campaign id is required")
	}

	prefix := campaignID + "/"
	it := s.bucket().Objects(ctx, &gcs.Query{Prefix: prefix})

	var entries []storage.ColdEntry
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects with prefix %q: %w", prefix, err)
		}
		entries = append(entries, entryFromAttrs(campaignID, attrs))
	}
	return entries, nil
}

// Delete removes one archived save. A missing object counts as already
// deleted.
func (s *Store) Delete(ctx context.Context, campaignID string, savedAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	key := storage.Key(campaignID, savedAt)
	if err := s.bucket().Object(key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func entryFromAttrs(campaignID string, attrs *gcs.ObjectAttrs) storage.ColdEntry {
	entry := storage.ColdEntry{
		CampaignID:  campaignID,
		SaveName:    attrs.Metadata[metaSaveName],
		ContentType: attrs.ContentType,
	}
	if raw, ok := attrs.Metadata[metaSavedAt]; ok {
		if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
			entry.SavedAt = time.UnixMilli(millis).UTC()
			return entry
		}
	}
	// older entries carry no savedAt metadata; recover it from the key
	if idx := strings.LastIndex(attrs.Name, "save_"); idx >= 0 {
		if millis, err := strconv.ParseInt(attrs.Name[idx+len("save_"):], 10, 64); err == nil {
			entry.SavedAt = time.UnixMilli(millis).UTC()
		}
	}
	return entry
}
