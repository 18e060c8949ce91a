// Package sqlite provides the SQLite-backed hot-tier save store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	"github.com/eldermoor/saveline/internal/archive/storage"
	"github.com/eldermoor/saveline/internal/archive/storage/sqlite/migrations"
	"github.com/eldermoor/saveline/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store persists the current snapshot per campaign in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite hot store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutCurrent overwrites the current snapshot for the campaign.
func (s *Store) PutCurrent(ctx context.Context, snap snapshot.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snap.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	messagesJSON, err := json.Marshal(snap.LastMessages)
	if err != nil {
		return fmt.Errorf("encode message tail: %w", err)
	}
	var statsJSON []byte
	if snap.Stats != nil {
		statsJSON, err = json.Marshal(snap.Stats)
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO current_saves (
		   campaign_id,
		   version,
		   save_name,
		   created_at,
		   campaign_name,
		   world_module,
		   character_json,
		   module_state_json,
		   last_messages_json,
		   message_count,
		   stats_json,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(campaign_id) DO UPDATE SET
		   version = excluded.version,
		   save_name = excluded.save_name,
		   created_at = excluded.created_at,
		   campaign_name = excluded.campaign_name,
		   world_module = excluded.world_module,
		   character_json = excluded.character_json,
		   module_state_json = excluded.module_state_json,
		   last_messages_json = excluded.last_messages_json,
		   message_count = excluded.message_count,
		   stats_json = excluded.stats_json,
		   updated_at = excluded.updated_at`,
		snap.CampaignID,
		snap.Version,
		snap.SaveName,
		toMillis(snap.CreatedAt),
		snap.CampaignName,
		snap.WorldModule,
		[]byte(snap.Character),
		[]byte(snap.ModuleState),
		messagesJSON,
		snap.MessageCount,
		statsJSON,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put current save: %w", err)
	}
	return nil
}

// GetCurrent retrieves the current snapshot for a campaign.
func (s *Store) GetCurrent(ctx context.Context, campaignID string) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return snapshot.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(campaignID) == "" {
		return snapshot.Snapshot{}, fmt.Errorf("campaign id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT version, save_name, created_at, campaign_name, world_module,
		        character_json, module_state_json, last_messages_json,
		        message_count, stats_json
		   FROM current_saves WHERE campaign_id = ?`,
		campaignID,
	)

	var (
		snap         snapshot.Snapshot
		createdAt    int64
		character    []byte
		moduleState  []byte
		messagesJSON []byte
		statsJSON    []byte
	)
	snap.CampaignID = campaignID
	err := row.Scan(
		&snap.Version,
		&snap.SaveName,
		&createdAt,
		&snap.CampaignName,
		&snap.WorldModule,
		&character,
		&moduleState,
		&messagesJSON,
		&snap.MessageCount,
		&statsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, storage.ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("get current save: %w", err)
	}

	snap.CreatedAt = fromMillis(createdAt)
	if len(character) > 0 {
		snap.Character = json.RawMessage(character)
	}
	if len(moduleState) > 0 {
		snap.ModuleState = json.RawMessage(moduleState)
	}
	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &snap.LastMessages); err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("decode message tail: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		snap.Stats = &snapshot.Stats{}
		if err := json.Unmarshal(statsJSON, snap.Stats); err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("decode stats: %w", err)
		}
	}

	return snap, nil
}

// RemoveCurrent deletes the current snapshot for a campaign. Removing an
// absent row is not an error.
func (s *Store) RemoveCurrent(ctx context.Context, campaignID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM current_saves WHERE campaign_id = ?", campaignID); err != nil {
		return fmt.Errorf("remove current save: %w", err)
	}
	return nil
}
