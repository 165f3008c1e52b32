package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps one document per photo id in a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

type firestoreRecord struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func NewFirestoreStore(ctx context.Context, projectID, collection, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client for project '%s': %w", projectID, err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		return nil, translateFirestoreError(key, err)
	}

	var record firestoreRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode firestore document %q: %w", key, err)
	}
	return []byte(record.Value), nil
}

func (s *FirestoreStore) Put(ctx context.Context, key string, value []byte) error {
	record := firestoreRecord{Value: string(value), UpdatedAt: time.Now().UTC()}
	if _, err := s.client.Collection(s.collection).Doc(key).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to write metadata %q: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Collection(s.collection).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete metadata %q: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	iter := s.client.Collection(s.collection).DocumentRefs(ctx)
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list metadata keys: %w", err)
		}
		keys = append(keys, ref.ID)
	}
	return keys, nil
}

func translateFirestoreError(key string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("metadata %q: %w", key, ErrKeyNotFound)
	}
	return fmt.Errorf("failed to read metadata %q: %w", key, err)
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
