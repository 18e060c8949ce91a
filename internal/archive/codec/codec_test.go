package codec

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

func sampleSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Version:      snapshot.SchemaVersion,
		SaveName:     "Before the storm",
		CreatedAt:    time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC),
		CampaignID:   "camp-7",
		CampaignName: "Ashes of Eldermoor",
		WorldModule:  "eldermoor-core",
		Character:    json.RawMessage(`{"name":"Sable","hp":9,"inventory":["rope","lantern"]}`),
		ModuleState:  json.RawMessage(`{"questLog":["reach the lighthouse"],"weather":"squall"}`),
		LastMessages: []snapshot.Message{
			{Role: "player", Content: "head for the cliffs"},
			{Role: "narrator", Content: "Rain needles your face as you climb."},
		},
		MessageCount: 128,
		Stats:        &snapshot.Stats{TotalTurns: 64, PlayTimeSeconds: 5400},
	}
}

func TestRoundTripCompressed(t *testing.T) {
	c := New(Gzip{})
	snap := sampleSnapshot()

	blob, contentType, err := c.Pack(snap)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if contentType != ContentTypeGzip {
		t.Fatalf("expected gzip content type, got %q", contentType)
	}

	got, err := c.Decode(blob, contentType)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, snap)
	}
}

func TestRoundTripPassthrough(t *testing.T) {
	c := New(Passthrough{})
	snap := sampleSnapshot()

	blob, contentType, err := c.Pack(snap)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if contentType != ContentTypeJSON {
		t.Fatalf("expected json content type, got %q", contentType)
	}

	got, err := c.Decode(blob, contentType)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, snap)
	}
}

func TestDecodeSniffsGzipWithoutContentType(t *testing.T) {
	c := New(Gzip{})
	snap := sampleSnapshot()

	blob, _, err := c.Pack(snap)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	// Legacy entries carry no usable content type; magic bytes decide.
	got, err := c.Decode(blob, "")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SaveName != snap.SaveName {
		t.Fatalf("expected save name %q, got %q", snap.SaveName, got.SaveName)
	}
}

func TestDecodeFallsBackToPlainOnMistaggedBlob(t *testing.T) {
	c := New(Passthrough{})
	snap := sampleSnapshot()

	blob, _, err := c.Pack(snap)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	// An uncompressed legacy blob tagged as gzip must still load.
	got, err := c.Decode(blob, ContentTypeGzip)
	if err != nil {
		t.Fatalf("decode mistagged blob: %v", err)
	}
	if got.CampaignID != snap.CampaignID {
		t.Fatalf("expected campaign %q, got %q", snap.CampaignID, got.CampaignID)
	}
}

func TestDecodeCorruptBlob(t *testing.T) {
	c := New(Gzip{})

	_, err := c.Decode([]byte("not json, not gzip"), ContentTypeGzip)
	if !errors.Is(err, ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive error, got %v", err)
	}

	_, err = c.Decode(nil, ContentTypeJSON)
	if !errors.Is(err, ErrCorruptArchive) {
		t.Fatalf("expected corrupt archive error for empty blob, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	c := New(Passthrough{})
	snap := sampleSnapshot()
	snap.Version = snapshot.SchemaVersion + 3

	blob, _, err := c.Pack(snap)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	_, err = c.Decode(blob, ContentTypeJSON)
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeCorruptArchive {
		t.Fatalf("expected corrupt archive code for future schema, got %v", err)
	}
}

func TestRoundTripMinimalSnapshot(t *testing.T) {
	c := New(Gzip{})
	snap := snapshot.Snapshot{
		Version:    1,
		SaveName:   "empty start",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CampaignID: "camp-empty",
	}

	// Tiny payloads may expand under gzip; that is acceptable.
	blob, contentType, err := c.Pack(snap)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := c.Decode(blob, contentType)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, snap)
	}
}
