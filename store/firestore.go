package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is a Firestore-backed implementation of ArticleStore.
// Each record is a document keyed by NewsID.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = "articles"
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) docRef(newsID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(newsID)
}

func (s *FirestoreStore) Save(ctx context.Context, rec ArticleRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.IsCurrent = true

	current := s.client.Collection(s.collection).
		Where("originId", "==", rec.OriginID).
		Where("isCurrent", "==", true)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(current).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if err := tx.Update(snap.Ref, []firestore.Update{{Path: "isCurrent", Value: false}}); err != nil {
				return err
			}
		}
		return tx.Create(s.docRef(rec.NewsID), rec)
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("article record %q already exists", rec.NewsID)
	}
	return err
}

func (s *FirestoreStore) ListCurrentByOwner(ctx context.Context, ownerID string) ([]ArticleRecord, error) {
	q := s.client.Collection(s.collection).
		Where("ownerId", "==", ownerID).
		Where("isCurrent", "==", true)
	return collect(q.Documents(ctx))
}

func (s *FirestoreStore) ListVersions(ctx context.Context, originID string) ([]ArticleRecord, error) {
	recs, err := collect(s.client.Collection(s.collection).Where("originId", "==", originID).Documents(ctx))
	if err != nil {
		return nil, err
	}
	// Sorted locally so the query needs no composite index.
	sortByVersion(recs)
	return recs, nil
}

func (s *FirestoreStore) GetVersion(ctx context.Context, newsID string) (*ArticleRecord, error) {
	snap, err := s.docRef(newsID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, newsID)
	}
	if err != nil {
		return nil, err
	}
	var rec ArticleRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func collect(iter *firestore.DocumentIterator) ([]ArticleRecord, error) {
	defer iter.Stop()

	var result []ArticleRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec ArticleRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.Ref.ID, err)
		}
		result = append(result, rec)
	}
	return result, nil
}
