package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormStore keeps article records in a relational table through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the articles table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ArticleRecord{}); err != nil {
		return nil, fmt.Errorf("migrate articles: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, rec ArticleRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.IsCurrent = true
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ArticleRecord{}).
			Where("origin_id = ? AND is_current = ?", rec.OriginID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
}

func (s *GormStore) ListCurrentByOwner(ctx context.Context, ownerID string) ([]ArticleRecord, error) {
	var recs []ArticleRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND is_current = ?", ownerID, true).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}

func (s *GormStore) ListVersions(ctx context.Context, originID string) ([]ArticleRecord, error) {
	var recs []ArticleRecord
	err := s.db.WithContext(ctx).
		Where("origin_id = ?", originID).
		Order("version ASC").
		Find(&recs).Error
	return recs, err
}

func (s *GormStore) GetVersion(ctx context.Context, newsID string) (*ArticleRecord, error) {
	var rec ArticleRecord
	err := s.db.WithContext(ctx).Where("news_id = ?", newsID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, newsID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
