// Package savetool implements the saveline operator command: inspecting,
// exporting, deleting, and pruning a campaign's save history.
package savetool

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/eldermoor/saveline/internal/archive"
	"github.com/eldermoor/saveline/internal/archive/codec"
	"github.com/eldermoor/saveline/internal/archive/storage"
	"github.com/eldermoor/saveline/internal/archive/storage/fsblob"
	"github.com/eldermoor/saveline/internal/archive/storage/gcsblob"
	"github.com/eldermoor/saveline/internal/archive/storage/redisstore"
	"github.com/eldermoor/saveline/internal/archive/storage/sqlite"
	"github.com/eldermoor/saveline/internal/platform/config"
)

// Config holds savetool command configuration.
type Config struct {
	CampaignID string

	HotBackend  string `env:"SAVELINE_HOT_BACKEND" envDefault:"sqlite"`
	ColdBackend string `env:"SAVELINE_COLD_BACKEND" envDefault:"fs"`

	SQLitePath    string `env:"SAVELINE_SQLITE_PATH"`
	RedisAddr     string `env:"SAVELINE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"SAVELINE_REDIS_PASSWORD"`
	RedisDB       int    `env:"SAVELINE_REDIS_DB"`

	ArchiveDir string `env:"SAVELINE_ARCHIVE_DIR"`
	GCSBucket  string `env:"SAVELINE_GCS_BUCKET"`

	MaxGenerations int           `env:"SAVELINE_MAX_GENERATIONS" envDefault:"10"`
	Timeout        time.Duration `env:"SAVELINE_TOOL_TIMEOUT" envDefault:"1m"`

	List          bool
	Export        bool
	Delete        bool
	Prune         bool
	SavedAtMillis int64
	JSONOutput    bool
}

type envConfig struct {
	HotBackend     string        `env:"SAVELINE_HOT_BACKEND" envDefault:"sqlite"`
	ColdBackend    string        `env:"SAVELINE_COLD_BACKEND" envDefault:"fs"`
	SQLitePath     string        `env:"SAVELINE_SQLITE_PATH"`
	RedisAddr      string        `env:"SAVELINE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"SAVELINE_REDIS_PASSWORD"`
	RedisDB        int           `env:"SAVELINE_REDIS_DB"`
	ArchiveDir     string        `env:"SAVELINE_ARCHIVE_DIR"`
	GCSBucket      string        `env:"SAVELINE_GCS_BUCKET"`
	MaxGenerations int           `env:"SAVELINE_MAX_GENERATIONS" envDefault:"10"`
	Timeout        time.Duration `env:"SAVELINE_TOOL_TIMEOUT" envDefault:"1m"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HotBackend:     envCfg.HotBackend,
		ColdBackend:    envCfg.ColdBackend,
		SQLitePath:     envCfg.SQLitePath,
		RedisAddr:      envCfg.RedisAddr,
		RedisPassword:  envCfg.RedisPassword,
		RedisDB:        envCfg.RedisDB,
		ArchiveDir:     envCfg.ArchiveDir,
		GCSBucket:      envCfg.GCSBucket,
		MaxGenerations: envCfg.MaxGenerations,
		Timeout:        envCfg.Timeout,
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join("data", "saveline.db")
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = filepath.Join("data", "archive")
	}

	fs.StringVar(&cfg.CampaignID, "campaign-id", "", "campaign ID to operate on")
	fs.StringVar(&cfg.HotBackend, "hot-backend", cfg.HotBackend, "hot store backend (sqlite|redis)")
	fs.StringVar(&cfg.ColdBackend, "cold-backend", cfg.ColdBackend, "cold archive backend (fs|gcs)")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "path to hot store sqlite database (default: SAVELINE_SQLITE_PATH or data/saveline.db)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the hot store (default: SAVELINE_REDIS_ADDR)")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "cold archive directory (default: SAVELINE_ARCHIVE_DIR or data/archive)")
	fs.StringVar(&cfg.GCSBucket, "gcs-bucket", cfg.GCSBucket, "cold archive GCS bucket (default: SAVELINE_GCS_BUCKET)")
	fs.IntVar(&cfg.MaxGenerations, "max-generations", cfg.MaxGenerations, "save generation cap, current plus archived")
	fs.BoolVar(&cfg.List, "list", false, "list all saves for the campaign, newest first")
	fs.BoolVar(&cfg.Export, "export", false, "write a snapshot as plain JSON to stdout")
	fs.BoolVar(&cfg.Delete, "delete", false, "delete one archived save")
	fs.BoolVar(&cfg.Prune, "prune", false, "evict archived saves beyond the retention bound")
	fs.Int64Var(&cfg.SavedAtMillis, "saved-at", 0, "archived save timestamp in unix milliseconds (0 = current save for -export; required for -delete)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) mode() (string, error) {
	var modes []string
	if c.List {
		modes = append(modes, "list")
	}
	if c.Export {
		modes = append(modes, "export")
	}
	if c.Delete {
		modes = append(modes, "delete")
	}
	if c.Prune {
		modes = append(modes, "prune")
	}
	switch len(modes) {
	case 0:
		return "", errors.New("one of -list, -export, -delete, or -prune is required")
	case 1:
		return modes[0], nil
	default:
		return "", fmt.Errorf("flags -%s cannot be combined", strings.Join(modes, " and -"))
	}
}

// Run executes the savetool command against the configured backends.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	mode, err := cfg.mode()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.CampaignID) == "" {
		return errors.New("-campaign-id is required")
	}
	if mode == "delete" && cfg.SavedAtMillis <= 0 {
		return errors.New("-delete requires -saved-at > 0")
	}

	hot, cold, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	return runWithDeps(ctx, cfg, hot, cold, out, errOut)
}

func openStores(ctx context.Context, cfg Config) (storage.HotStore, closableColdStore, error) {
	var hot storage.HotStore
	switch cfg.HotBackend {
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite hot store: %w", err)
		}
		hot = store
	case "redis":
		store, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis hot store: %w", err)
		}
		hot = store
	default:
		return nil, nil, fmt.Errorf("unknown hot backend %q (want sqlite or redis)", cfg.HotBackend)
	}

	var cold closableColdStore
	switch cfg.ColdBackend {
	case "fs":
		store, err := fsblob.Open(cfg.ArchiveDir)
		if err != nil {
			closeQuietly(hot)
			return nil, nil, fmt.Errorf("open archive directory: %w", err)
		}
		cold = store
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			closeQuietly(hot)
			return nil, nil, errors.New("-gcs-bucket is required with the gcs cold backend")
		}
		store, err := gcsblob.Open(ctx, cfg.GCSBucket)
		if err != nil {
			closeQuietly(hot)
			return nil, nil, fmt.Errorf("open gcs archive: %w", err)
		}
		cold = store
	default:
		closeQuietly(hot)
		return nil, nil, fmt.Errorf("unknown cold backend %q (want fs or gcs)", cfg.ColdBackend)
	}
	return hot, cold, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

// runWithDeps contains the core savetool logic with injectable stores.
// It owns the lifecycle of the stores, closing them on return.
func runWithDeps(ctx context.Context, cfg Config, hot storage.HotStore, cold closableColdStore, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	defer func() {
		if err := hot.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close hot store: %v\n", err)
		}
		if err := cold.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: close cold archive: %v\n", err)
		}
	}()

	manager := archive.NewManager(hot, cold, codec.New(codec.Gzip{}),
		archive.WithRetention(archive.RetentionPolicy{MaxGenerations: cfg.MaxGenerations}))

	mode, err := cfg.mode()
	if err != nil {
		return err
	}
	switch mode {
	case "list":
		return runList(ctx, manager, cfg, out)
	case "export":
		return runExport(ctx, manager, cfg, out)
	case "delete":
		return runDelete(ctx, manager, cfg, out)
	case "prune":
		return runPrune(ctx, cold, cfg, out)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

type listRow struct {
	SaveName   string `json:"save_name"`
	SavedAt    int64  `json:"saved_at"`
	Tier       string `json:"tier"`
	Compressed bool   `json:"compressed"`
}

func runList(ctx context.Context, manager *archive.Manager, cfg Config, out io.Writer) error {
	saves, err := manager.List(ctx, cfg.CampaignID)
	if err != nil {
		return fmt.Errorf("list saves: %w", err)
	}

	rows := make([]listRow, 0, len(saves))
	for _, save := range saves {
		rows = append(rows, listRow{
			SaveName:   save.SaveName,
			SavedAt:    save.SavedAt.UnixMilli(),
			Tier:       string(save.Tier),
			Compressed: save.Compressed,
		})
	}
	if cfg.JSONOutput {
		return outputJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "no saves for campaign %s\n", cfg.CampaignID)
		return nil
	}
	fmt.Fprintf(out, "%-14s  %-4s  %-10s  %s\n", "SAVED_AT", "TIER", "COMPRESSED", "NAME")
	for _, row := range rows {
		fmt.Fprintf(out, "%-14d  %-4s  %-10t  %s\n", row.SavedAt, row.Tier, row.Compressed, row.SaveName)
	}
	return nil
}

func runExport(ctx context.Context, manager *archive.Manager, cfg Config, out io.Writer) error {
	if cfg.SavedAtMillis > 0 {
		savedAt := time.UnixMilli(cfg.SavedAtMillis).UTC()
		if err := manager.ExportAt(ctx, out, cfg.CampaignID, savedAt); err != nil {
			return fmt.Errorf("export archived save: %w", err)
		}
		return nil
	}
	if err := manager.Export(ctx, out, cfg.CampaignID); err != nil {
		return fmt.Errorf("export current save: %w", err)
	}
	return nil
}

type deleteReport struct {
	CampaignID string `json:"campaign_id"`
	SavedAt    int64  `json:"saved_at"`
	Deleted    bool   `json:"deleted"`
}

func runDelete(ctx context.Context, manager *archive.Manager, cfg Config, out io.Writer) error {
	savedAt := time.UnixMilli(cfg.SavedAtMillis).UTC()
	if err := manager.Delete(ctx, cfg.CampaignID, savedAt); err != nil {
		return fmt.Errorf("delete archived save: %w", err)
	}
	if cfg.JSONOutput {
		return outputJSON(out, deleteReport{CampaignID: cfg.CampaignID, SavedAt: cfg.SavedAtMillis, Deleted: true})
	}
	fmt.Fprintf(out, "deleted %s/save_%d\n", cfg.CampaignID, cfg.SavedAtMillis)
	return nil
}

type pruneReport struct {
	CampaignID string `json:"campaign_id"`
	Evicted    int    `json:"evicted"`
}

func runPrune(ctx context.Context, cold storage.ColdStore, cfg Config, out io.Writer) error {
	policy := archive.RetentionPolicy{MaxGenerations: cfg.MaxGenerations}
	evicted, err := policy.Prune(ctx, cold, cfg.CampaignID)
	if err != nil {
		return fmt.Errorf("prune archived saves: %w", err)
	}
	if cfg.JSONOutput {
		return outputJSON(out, pruneReport{CampaignID: cfg.CampaignID, Evicted: evicted})
	}
	fmt.Fprintf(out, "evicted %d archived saves for campaign %s\n", evicted, cfg.CampaignID)
	return nil
}

func outputJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
