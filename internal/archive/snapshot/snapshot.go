// Package snapshot defines the campaign snapshot persisted by the save archive.
//
// A Snapshot is the full serializable state of a campaign at one point in
// time: identity metadata, the opaque ruleset payloads produced by the game
// layer, a bounded tail of recent narrative messages, and optional aggregate
// stats. The archive round-trips the Character and ModuleState payloads
// byte-for-byte and never inspects them, so the save layer stays agnostic to
// world modules.
//
// Snapshots are immutable once written: a save always produces a new
// Snapshot value, never mutates a stored one in place.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/eldermoor/saveline/internal/platform/errors"
)

// SchemaVersion is the current snapshot schema revision. Loaders must check
// the version of decoded snapshots rather than assume it.
const SchemaVersion = 2

// MessageWindow bounds how many trailing messages a snapshot carries.
const MessageWindow = 50

// Message is one narrative exchange between the player and the AI narrator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stats aggregates campaign-lifetime counters. Turn accounting is computed
// upstream; the archive stores the numbers opaquely.
type Stats struct {
	TotalTurns      int   `json:"totalTurns"`
	PlayTimeSeconds int64 `json:"playTimeSeconds"`
}

// Snapshot is the unit of persistence for a campaign save.
type Snapshot struct {
	Version      int             `json:"version"`
	SaveName     string          `json:"saveName"`
	CreatedAt    time.Time       `json:"createdAt"`
	CampaignID   string          `json:"campaignId"`
	CampaignName string          `json:"campaignName,omitempty"`
	WorldModule  string          `json:"worldModule,omitempty"`
	Character    json.RawMessage `json:"character,omitempty"`
	ModuleState  json.RawMessage `json:"moduleState,omitempty"`
	LastMessages []Message       `json:"lastMessages,omitempty"`
	MessageCount int             `json:"messageCount"`
	Stats        *Stats          `json:"stats,omitempty"`
}

// Validate checks the snapshot invariants enforced at the archive boundary.
func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.CampaignID) == "" {
		return apperrors.New(apperrors.CodeSnapshotCampaignIDEmpty, "campaign id is required")
	}
	if strings.TrimSpace(s.SaveName) == "" {
		return apperrors.New(apperrors.CodeSnapshotSaveNameEmpty, "save name is required")
	}
	if s.Version < 1 || s.Version > SchemaVersion {
		return apperrors.WithMetadata(apperrors.CodeSnapshotInvalidVersion,
			fmt.Sprintf("snapshot schema version %d is outside the supported range 1..%d", s.Version, SchemaVersion),
			map[string]string{"version": fmt.Sprintf("%d", s.Version)})
	}
	if len(s.LastMessages) > MessageWindow {
		return apperrors.New(apperrors.CodeSnapshotMessageOverflow,
			fmt.Sprintf("snapshot carries %d messages, window is %d", len(s.LastMessages), MessageWindow))
	}
	if s.MessageCount < len(s.LastMessages) {
		return apperrors.New(apperrors.CodeSnapshotMessageCount,
			"message count is lower than the retained message tail")
	}
	return nil
}

// Tail returns the at-most-MessageWindow most recent messages, oldest first.
// Callers use it when building a snapshot from a full transcript.
func Tail(messages []Message) []Message {
	if len(messages) <= MessageWindow {
		return messages
	}
	return messages[len(messages)-MessageWindow:]
}
