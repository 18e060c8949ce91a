// Package errors provides structured error handling for the save archive.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Snapshot validation errors
	CodeSnapshotCampaignIDEmpty Code = "SNAPSHOT_CAMPAIGN_ID_EMPTY"
	CodeSnapshotSaveNameEmpty   Code = "SNAPSHOT_SAVE_NAME_EMPTY"
	CodeSnapshotInvalidVersion  Code = "SNAPSHOT_INVALID_VERSION"
	CodeSnapshotMessageOverflow Code = "SNAPSHOT_MESSAGE_WINDOW_EXCEEDED"
	CodeSnapshotMessageCount    Code = "SNAPSHOT_INVALID_MESSAGE_COUNT"

	// Archive errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeCorruptArchive Code = "CORRUPT_ARCHIVE"
	CodeEvictionFailed Code = "EVICTION_FAILED"
	CodeBackingStore   Code = "BACKING_STORE_FAILURE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSnapshotCampaignIDEmpty,
		CodeSnapshotSaveNameEmpty,
		CodeSnapshotInvalidVersion,
		CodeSnapshotMessageOverflow,
		CodeSnapshotMessageCount:
		return codes.InvalidArgument

	// NotFound - requested save does not exist
	case CodeNotFound:
		return codes.NotFound

	// DataLoss - archived blob cannot be decoded by any path
	case CodeCorruptArchive:
		return codes.DataLoss

	// Unavailable - transport/permission/quota failure from a backing store
	case CodeBackingStore:
		return codes.Unavailable

	// Internal - best-effort maintenance failed
	case CodeEvictionFailed:
		return codes.Internal

	default:
		return codes.Unknown
	}
}
