package lock

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tako/internal/domain"
)

type firestoreLease struct {
	Owner      string    `firestore:"owner"`
	ExpiresAt  time.Time `firestore:"expires_at"`
	AcquiredAt time.Time `firestore:"acquired_at"`
}

// FirestoreStore keeps one document per user in a collection. A TTL policy
// on expires_at reclaims stale documents.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) CreateIfAbsent(ctx context.Context, lease domain.Lease, now time.Time) (bool, error) {
	ref := s.client.Collection(s.collection).Doc(lease.Key)
	acquired := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		case snap.Exists():
			var cur firestoreLease
			if err := snap.DataTo(&cur); err != nil {
				return err
			}
			if cur.ExpiresAt.After(now) {
				return nil
			}
		}
		acquired = true
		return tx.Set(ref, firestoreLease{
			Owner:      lease.Owner,
			ExpiresAt:  lease.ExpiresAt,
			AcquiredAt: now,
		})
	})
	if err != nil {
		return false, fmt.Errorf("firestore acquire %s/%s: %w", s.collection, lease.Key, err)
	}
	return acquired, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Collection(s.collection).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", s.collection, key, err)
	}
	return nil
}
