// Package backup periodically writes spreadsheet snapshots of the queue to disk.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"queue-ticket-backend/config"
	"queue-ticket-backend/internal/queue"
)

// Exporter produces the workbook to back up.
type Exporter interface {
	Export(ctx context.Context) (queue.ExportFile, error)
}

// Service runs the backup loop.
type Service struct {
	cfg      config.BackupConfig
	exporter Exporter
}

// NewService creates a backup service.
func NewService(cfg config.BackupConfig, exporter Exporter) *Service {
	return &Service{cfg: cfg, exporter: exporter}
}

// Run takes a snapshot immediately and then every configured interval until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Backup is disabled. Not starting.")
		return
	}
	log.Printf("Starting backup service (every %s into %s)...", s.cfg.Interval, s.cfg.Dir)

	s.logOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Backup service shutting down.")
			return
		case <-timer.C:
			s.logOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) logOnce(ctx context.Context) {
	path, err := s.RunOnce(ctx)
	switch {
	case err != nil:
		log.Printf("Backup failed: %v", err)
	case path == "":
		log.Println("Backup skipped: no tickets")
	default:
		log.Printf("Backup written to %s", path)
	}
}

// RunOnce writes one snapshot and prunes old ones. It returns the written
// path, or "" when there was nothing to export.
func (s *Service) RunOnce(ctx context.Context) (string, error) {
	file, err := s.exporter.Export(ctx)
	if errors.Is(err, queue.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, file.Filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move backup into place: %w", err)
	}

	if err := s.prune(); err != nil {
		log.Printf("Failed to prune old backups: %v", err)
	}
	return path, nil
}

// prune keeps the newest cfg.Keep snapshots. Snapshot names embed a
// YYYYMMDDHHMM stamp, so name order is age order.
func (s *Service) prune() error {
	if s.cfg.Keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return err
	}

	var snapshots []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xlsx") {
			continue
		}
		snapshots = append(snapshots, e.Name())
	}
	if len(snapshots) <= s.cfg.Keep {
		return nil
	}

	sort.Strings(snapshots)
	for _, name := range snapshots[:len(snapshots)-s.cfg.Keep] {
		if err := os.Remove(filepath.Join(s.cfg.Dir, name)); err != nil {
			return err
		}
	}
	return nil
}
