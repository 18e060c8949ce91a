// Package redisstore provides the Redis-backed hot-tier save store.
//
// It is an alternative to the SQLite backend for deployments that already run
// Redis and want the current-save slot served from memory.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/eldermoor/saveline/internal/archive/snapshot"
	"github.com/eldermoor/saveline/internal/archive/storage"
)

const keyPrefix = "saveline:current:"

// Store persists the current snapshot per campaign in Redis.
type Store struct {
	client *redis.Client
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func key(campaignID string) string {
	return keyPrefix + campaignID
}

// PutCurrent overwrites the current snapshot for the campaign.
func (s *Store) PutCurrent(ctx context.Context, snap snapshot.Snapshot) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snap.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode current save: %w", err)
	}
	if err := s.client.Set(ctx, key(snap.CampaignID), data, 0).Err(); err != nil {
		return fmt.Errorf("put current save: %w", err)
	}
	return nil
}

// GetCurrent retrieves the current snapshot for a campaign.
func (s *Store) GetCurrent(ctx context.Context, campaignID string) (snapshot.Snapshot, error) {
	if s == nil || s.client == nil {
		return snapshot.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(campaignID) == "" {
		return snapshot.Snapshot{}, fmt.Errorf("campaign id is required")
	}

	data, err := s.client.Get(ctx, key(campaignID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snapshot.Snapshot{}, storage.ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("get current save: %w", err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("decode current save: %w", err)
	}
	return snap, nil
}

// RemoveCurrent deletes the current snapshot for a campaign. Removing an
// absent key is not an error.
func (s *Store) RemoveCurrent(ctx context.Context, campaignID string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	if err := s.client.Del(ctx, key(campaignID)).Err(); err != nil {
		return fmt.Errorf("remove current save: %w", err)
	}
	return nil
}
