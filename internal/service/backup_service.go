package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"challengetracker/internal/models"
)

const backupVersion = "2.0"

// BackupData represents the complete backup structure
type BackupData struct {
	Version      string                `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	DatabaseType string                `json:"database_type"`
	State        json.RawMessage       `json:"state"`
	History      []models.HistoryEntry `json:"history"`
}

// BackupService exports and restores the snapshot and the history ledger
type BackupService struct {
	reconciler   *Reconciler
	ledger       *HistoryLedger
	databaseType string
}

// NewBackupService creates a new backup service
func NewBackupService(reconciler *Reconciler, ledger *HistoryLedger, databaseType string) *BackupService {
	return &BackupService{reconciler: reconciler, ledger: ledger, databaseType: databaseType}
}

// Export writes a complete backup to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	log.Printf("Database exported successfully to %s", outputPath)
	return nil
}

// ExportToWriter writes a complete backup as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	log.Println("Starting database export...")

	state, err := s.reconciler.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	rawState, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	history, err := s.ledger.QueryAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}

	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.databaseType,
		State:        rawState,
		History:      history,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Printf("Exported: %d themes, %d progress entries, %d history entries",
		len(state.Themes), len(state.Progress), len(history))
	return nil
}

// Import restores a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clearHistory bool) error {
	log.Printf("Starting database import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clearHistory)
}

// ImportFromReader restores a backup. A bare snapshot in any historical shape
// is accepted too and migrated before it is saved. History entries replace
// the ledger when clearHistory is set and are merged by natural key otherwise.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, clearHistory bool) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	state, history, err := s.DecodeBackup(raw)
	if err != nil {
		return err
	}

	if err := s.reconciler.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save imported state: %w", err)
	}

	if err := s.RestoreHistory(ctx, history, clearHistory); err != nil {
		return err
	}

	log.Printf("Imported: %d themes, %d progress entries, %d history entries",
		len(state.Themes), len(state.Progress), len(history))
	return nil
}

// RestoreHistory replaces the ledger with history when clearHistory is set
// and merges it by natural key otherwise
func (s *BackupService) RestoreHistory(ctx context.Context, history []models.HistoryEntry, clearHistory bool) error {
	if clearHistory {
		if err := s.ledger.ReplaceAll(ctx, history); err != nil {
			return fmt.Errorf("failed to import history: %w", err)
		}
		return nil
	}
	if err := s.ledger.Merge(ctx, history); err != nil {
		return fmt.Errorf("failed to import history: %w", err)
	}
	return nil
}

// DecodeBackup reads a backup document or a bare snapshot and returns the
// scaffolded state and history it carries
func (s *BackupService) DecodeBackup(raw []byte) (*models.AppState, []models.HistoryEntry, error) {
	var backup BackupData
	if err := json.Unmarshal(raw, &backup); err != nil {
		return nil, nil, fmt.Errorf("failed to decode backup: %w", err)
	}

	stateRaw := raw
	if len(bytes.TrimSpace(backup.State)) > 0 {
		log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)
		stateRaw = backup.State
	} else {
		log.Println("No backup envelope found, reading a bare snapshot")
	}

	state, err := models.DecodeLegacyState(stateRaw, s.reconciler.Slots())
	if err != nil {
		return nil, nil, err
	}
	s.reconciler.Scaffold(state)
	for i := range state.Themes {
		state.Themes[i].ID = 0
	}
	return state, backup.History, nil
}
