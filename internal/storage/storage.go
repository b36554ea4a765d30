// Package storage keeps local append-only CSV backups of every row batch
// sent to a destination tab, optionally mirrored to S3. The backup is
// written before the remote append so an interrupted run leaves a record of
// what it tried to write.
package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/domain"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
)

// Mirror receives a copy of a backup file after each local append.
type Mirror interface {
	PutFile(ctx context.Context, key string, data []byte, contentType string) error
}

// Storage writes the per-kind CSV backups for one campaign.
type Storage struct {
	config   config.StorageConfig
	campaign string
	mirror   Mirror
	mu       sync.Mutex
}

// New creates campaign backups under cfg.BackupDir. mirror may be nil.
func New(cfg config.StorageConfig, campaign string, mirror Mirror) *Storage {
	return &Storage{config: cfg, campaign: campaign, mirror: mirror}
}

// Path returns the backup file for kind.
func (s *Storage) Path(kind domain.Kind) string {
	return filepath.Join(s.config.BackupDir, s.campaign, string(kind)+".csv")
}

// Append writes rows to the kind's backup file, writing header first when
// the file is new, then mirrors the whole file. Mirror failures are logged
// and do not fail the append.
func (s *Storage) Append(ctx context.Context, kind domain.Kind, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(kind)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening backup %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if isNew && len(header) > 0 {
		w.Write(header)
	}
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing backup %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing backup %s: %w", path, err)
	}

	logger.Debug("backup appended", "path", path, "rows", len(rows))

	if s.mirror != nil {
		if err := s.mirrorFile(ctx, kind, path); err != nil {
			logger.Warn("backup mirror failed", "path", path, "error", err.Error())
		}
	}
	return nil
}

func (s *Storage) mirrorFile(ctx context.Context, kind domain.Kind, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.mirror.PutFile(ctx, s.Key(string(kind)+".csv"), data, "text/csv")
}

// Key builds the object key for a campaign file.
func (s *Storage) Key(name string) string {
	if s.config.S3Prefix == "" {
		return s.campaign + "/" + name
	}
	return s.config.S3Prefix + "/" + s.campaign + "/" + name
}

// MirrorFile uploads an arbitrary local campaign file, such as the ledger.
// It is a no-op without a mirror.
func (s *Storage) MirrorFile(ctx context.Context, name, path, contentType string) error {
	if s.mirror == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return s.mirror.PutFile(ctx, s.Key(name), data, contentType)
}
