// Package codec serializes campaign snapshots into transportable blobs for
// the cold archive tier and decodes them back, including the uncompressed
// legacy fallback.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

// Content types tagged onto archived blobs so the decoder knows whether to
// decompress before parsing.
const (
	ContentTypeJSON = "application/json"
	ContentTypeGzip = "application/gzip"
)

// ErrCorruptArchive indicates a blob that neither the compressed nor the
// plain decoding path could parse. The entry is left in place; callers decide
// how to surface the failure.
var ErrCorruptArchive = apperrors.New(apperrors.CodeCorruptArchive, "archived save is not decodable")

// Compressor is the injected compression capability. Environments without a
// compression primitive use Passthrough and still produce loadable archives.
type Compressor interface {
	// Compress transforms encoded bytes into the stored blob form.
	Compress(data []byte) ([]byte, error)
	// ContentType tags blobs produced by this compressor.
	ContentType() string
}

// Gzip compresses blobs with DEFLATE in a gzip envelope.
type Gzip struct{}

// Compress implements Compressor.
func (Gzip) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType implements Compressor.
func (Gzip) ContentType() string { return ContentTypeGzip }

// Passthrough stores encoded bytes unchanged. It is the degradation path for
// runtimes without a compression primitive, not an optimization shortcut.
type Passthrough struct{}

// Compress implements Compressor.
func (Passthrough) Compress(data []byte) ([]byte, error) { return data, nil }

// ContentType implements Compressor.
func (Passthrough) ContentType() string { return ContentTypeJSON }

// Codec turns snapshots into archive blobs and back.
type Codec struct {
	compressor Compressor
}

// New creates a codec with the given compression capability. A nil compressor
// defaults to Gzip.
func New(compressor Compressor) *Codec {
	if compressor == nil {
		compressor = Gzip{}
	}
	return &Codec{compressor: compressor}
}

// Encode serializes a snapshot to its canonical byte encoding. The same
// encoding backs cold-tier blobs and user-facing file exports.
func (c *Codec) Encode(snap snapshot.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Pack encodes and compresses a snapshot, returning the blob and the content
// type the archive entry must be tagged with. Small payloads may legitimately
// expand under compression; that is not an error.
func (c *Codec) Pack(snap snapshot.Snapshot) ([]byte, string, error) {
	data, err := c.Encode(snap)
	if err != nil {
		return nil, "", err
	}
	blob, err := c.compressor.Compress(data)
	if err != nil {
		return nil, "", fmt.Errorf("compress snapshot: %w", err)
	}
	return blob, c.compressor.ContentType(), nil
}

// Decode parses an archived blob back into a snapshot. The content type and
// gzip magic bytes decide whether to decompress first; ambiguous or legacy
// content falls back to the plain path. Decode returns ErrCorruptArchive only
// when neither path yields a valid snapshot.
func (c *Codec) Decode(blob []byte, contentType string) (snapshot.Snapshot, error) {
	if len(blob) == 0 {
		return snapshot.Snapshot{}, apperrors.Wrap(apperrors.CodeCorruptArchive, "archived save is empty", ErrCorruptArchive)
	}

	if contentType == ContentTypeGzip || hasGzipMagic(blob) {
		if data, err := gunzip(blob); err == nil {
			if snap, err := parse(data); err == nil {
				return snap, nil
			}
		}
		// fall through: legacy entries were stored uncompressed regardless
		// of how they were tagged
	}

	snap, err := parse(blob)
	if err != nil {
		return snapshot.Snapshot{}, apperrors.Wrap(apperrors.CodeCorruptArchive, "archived save is not decodable", err)
	}
	return snap, nil
}

func parse(data []byte) (snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.Snapshot{}, err
	}
	if snap.Version < 1 || snap.Version > snapshot.SchemaVersion {
		return snapshot.Snapshot{}, fmt.Errorf("unsupported snapshot schema version %d", snap.Version)
	}
	return snap, nil
}

func hasGzipMagic(blob []byte) bool {
	return len(blob) >= 2 && blob[0] == 0x1f && blob[1] == 0x8b
}

func gunzip(blob []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return data, nil
}
