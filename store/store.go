package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("article record not found")

// ArticleRecord is one saved version of an article. NewsID identifies the
// version; OriginID groups every version of the same article.
type ArticleRecord struct {
	NewsID      string    `json:"newsId" gorm:"column:news_id;primaryKey" firestore:"newsId"`
	OriginID    string    `json:"originId" gorm:"column:origin_id;index;not null" firestore:"originId"`
	OwnerID     string    `json:"ownerId" gorm:"column:owner_id;index;not null" firestore:"ownerId"`
	Version     int       `json:"version" gorm:"column:version;not null" firestore:"version"`
	Content     string    `json:"content" gorm:"column:content;type:text" firestore:"content"`
	Description string    `json:"description" gorm:"column:description" firestore:"description"`
	IsCurrent   bool      `json:"isCurrent" gorm:"column:is_current;index" firestore:"isCurrent"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:created_at" firestore:"createdAt"`
}

func (ArticleRecord) TableName() string { return "articles" }

// ArticleStore persists article versions.
// Implementations: MemoryStore, GormStore (postgres), FirestoreStore.
type ArticleStore interface {
	// Save inserts rec as the current version of its origin; earlier
	// versions of the same origin stop being current.
	Save(ctx context.Context, rec ArticleRecord) error
	ListCurrentByOwner(ctx context.Context, ownerID string) ([]ArticleRecord, error)
	// ListVersions returns every version of originID ordered by Version.
	ListVersions(ctx context.Context, originID string) ([]ArticleRecord, error)
	GetVersion(ctx context.Context, newsID string) (*ArticleRecord, error)
}

func validate(rec ArticleRecord) error {
	switch {
	case rec.NewsID == "":
		return errors.New("newsId is required")
	case rec.OriginID == "":
		return errors.New("originId is required")
	case rec.OwnerID == "":
		return errors.New("ownerId is required")
	}
	return nil
}
