// Package fsblob provides a filesystem-backed cold archive for local and
// development deployments. Each entry is a blob file plus a JSON sidecar
// carrying the tier-native metadata an object store would keep on the object.
package fsblob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eldermoor/saveline/internal/archive/storage"
)

const metaSuffix = ".meta.json"

// Store is a cold archive rooted at a local directory.
type Store struct {
	root string
}

// Open creates the archive root if needed and returns the store.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("archive root is required")
	}
	cleanRoot := filepath.Clean(root)
	if err := os.MkdirAll(cleanRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &Store{root: cleanRoot}, nil
}

// Close is a no-op; the store holds no open handles between operations.
func (s *Store) Close() error { return nil }

type sidecar struct {
	SaveName    string `json:"saveName"`
	SavedAt     int64  `json:"savedAt"`
	ContentType string `json:"contentType"`
}

func validCampaignID(campaignID string) error {
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	if strings.ContainsAny(campaignID, `/\`) || campaignID == "." || campaignID == ".." {
		return fmt.Errorf("campaign id %q is not a valid archive key segment", campaignID)
	}
	return nil
}

func (s *Store) blobPath(campaignID string, savedAt time.Time) string {
	return filepath.Join(s.root, campaignID, fmt.Sprintf("save_%d", savedAt.UTC().UnixMilli()))
}

// Put writes a new archive entry. Same-key writes are last-writer-wins.
func (s *Store) Put(ctx context.Context, entry storage.ColdEntry, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.root == "" {
		return fmt.Errorf("storage is not configured")
	}
	if err := validCampaignID(entry.CampaignID); err != nil {
		return err
	}

	dir := filepath.Join(s.root, entry.CampaignID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create campaign dir: %w", err)
	}

	path := s.blobPath(entry.CampaignID, entry.SavedAt)
	meta, err := json.Marshal(sidecar{
		SaveName:    entry.SaveName,
		SavedAt:     entry.SavedAt.UTC().UnixMilli(),
		ContentType: entry.ContentType,
	})
	if err != nil {
		return fmt.Errorf("encode entry metadata: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write archive blob: %w", err)
	}
	if err := os.WriteFile(path+metaSuffix, meta, 0o644); err != nil {
		return fmt.Errorf("write archive metadata: %w", err)
	}
	return nil
}

// Get returns the blob and metadata for one archived save.
func (s *Store) Get(ctx context.Context, campaignID string, savedAt time.Time) ([]byte, storage.ColdEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.ColdEntry{}, err
	}
	if s == nil || s.root == "" {
		return nil, storage.ColdEntry{}, fmt.Errorf("storage is not configured")
	}
	if err := validCampaignID(campaignID); err != nil {
		return nil, storage.ColdEntry{}, err
	}

	path := s.blobPath(campaignID, savedAt)
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ColdEntry{}, storage.ErrNotFound
		}
		return nil, storage.ColdEntry{}, fmt.Errorf("read archive blob: %w", err)
	}

	entry, err := s.readSidecar(campaignID, path)
	if err != nil {
		return nil, storage.ColdEntry{}, err
	}
	return blob, entry, nil
}

func (s *Store) readSidecar(campaignID, blobPath string) (storage.ColdEntry, error) {
	entry := storage.ColdEntry{CampaignID: campaignID}

	meta, err := os.ReadFile(blobPath + metaSuffix)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return storage.ColdEntry{}, fmt.Errorf("read archive metadata: %w", err)
		}
		// blob without sidecar: recover the timestamp from the key
		millis, parseErr := millisFromName(filepath.Base(blobPath))
		if parseErr != nil {
			return storage.ColdEntry{}, parseErr
		}
		entry.SavedAt = time.UnixMilli(millis).UTC()
		return entry, nil
	}

	var sc sidecar
	if err := json.Unmarshal(meta, &sc); err != nil {
		return storage.ColdEntry{}, fmt.Errorf("decode archive metadata: %w", err)
	}
	entry.SaveName = sc.SaveName
	entry.SavedAt = time.UnixMilli(sc.SavedAt).UTC()
	entry.ContentType = sc.ContentType
	return entry, nil
}

func millisFromName(name string) (int64, error) {
	raw, ok := strings.CutPrefix(name, "save_")
	if !ok {
		return 0, fmt.Errorf("unexpected archive entry name %q", name)
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse archive entry timestamp from %q: %w", name, err)
	}
	return millis, nil
}

// List enumerates all archived saves for a campaign. Order follows the
// directory listing; callers sort.
func (s *Store) List(ctx context.Context, campaignID string) ([]storage.ColdEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.root == "" {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := validCampaignID(campaignID); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, campaignID)
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list campaign archive: %w", err)
	}

	var entries []storage.ColdEntry
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || strings.HasSuffix(name, metaSuffix) || !strings.HasPrefix(name, "save_") {
			continue
		}
		entry, err := s.readSidecar(campaignID, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes one archived save. Deleting a non-existent entry is not an
// error.
func (s *Store) Delete(ctx context.Context, campaignID string, savedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.root == "" {
		return fmt.Errorf("storage is not configured")
	}
	if err := validCampaignID(campaignID); err != nil {
		return err
	}

	path := s.blobPath(campaignID, savedAt)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete archive blob: %w", err)
	}
	if err := os.Remove(path + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete archive metadata: %w", err)
	}
	return nil
}
