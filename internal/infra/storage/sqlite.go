// Package storage persists the append-only trade journal. The journal
// doubles as the write-ahead log: replaying it through the engine
// rebuilds the desk, the ledgers and the guard after a restart.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tokendesk/internal/domain"
)

// Journal is the SQLite-backed record store.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (or creates) the journal at path.
func NewJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// Pure-Go SQLite; no cgo.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.AutoMigrate(&domain.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append writes one committed record. The unique seq index refuses
// duplicates, so a replayed or double-written sequence surfaces as an
// error instead of silent corruption.
func (j *Journal) Append(ctx context.Context, rec *domain.TradeRecord) error {
	return j.db.WithContext(ctx).Create(rec).Error
}

// All returns every record in sequence order.
func (j *Journal) All() ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	err := j.db.Order("seq asc").Find(&recs).Error
	return recs, err
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(limit int) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	err := j.db.Order("seq desc").Limit(limit).Find(&recs).Error
	return recs, err
}

// ByKind returns up to limit records of one kind, newest first.
func (j *Journal) ByKind(kind string, limit int) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	err := j.db.Where("kind = ?", kind).Order("seq desc").Limit(limit).Find(&recs).Error
	return recs, err
}

// LastSeq returns the highest journaled sequence, zero when empty.
func (j *Journal) LastSeq() (uint64, error) {
	var seq *uint64
	if err := j.db.Model(&domain.TradeRecord{}).Select("max(seq)").Scan(&seq).Error; err != nil {
		return 0, err
	}
	if seq == nil {
		return 0, nil
	}
	return *seq, nil
}

// Count returns the number of journaled records.
func (j *Journal) Count() (int64, error) {
	var n int64
	err := j.db.Model(&domain.TradeRecord{}).Count(&n).Error
	return n, err
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
