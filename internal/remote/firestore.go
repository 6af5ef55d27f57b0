package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreStore talks to Cloud Firestore. Authenticate builds the Firebase app
// and client; no listener may start before it returns.
type FirestoreStore struct {
	projectID       string
	credentialsJSON string
	logger          zerolog.Logger

	mu     sync.RWMutex
	client *firestore.Client
}

func NewFirestoreStore(projectID, credentialsJSON string, logger zerolog.Logger) *FirestoreStore {
	return &FirestoreStore{
		projectID:       projectID,
		credentialsJSON: credentialsJSON,
		logger:          logger.With().Str("component", "firestore").Logger(),
	}
}

func (s *FirestoreStore) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	var opts []option.ClientOption
	if s.credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(s.credentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: s.projectID}, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize firestore client: %w", err)
	}

	s.client = client
	s.logger.Info().Str("project_id", s.projectID).Msg("firestore client ready")
	return nil
}

func (s *FirestoreStore) getClient() (*firestore.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotAuthenticated
	}
	return s.client, nil
}

func (s *FirestoreStore) Listen(ctx context.Context, collection string, fn func([]Change)) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	it := client.Collection(collection).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) {
				return ctx.Err()
			}
			return fmt.Errorf("snapshot listener on %s failed: %w", collection, err)
		}
		if len(snap.Changes) == 0 {
			continue
		}

		changes := make([]Change, 0, len(snap.Changes))
		for _, dc := range snap.Changes {
			changes = append(changes, Change{
				Kind: convertKind(dc.Kind),
				ID:   dc.Doc.Ref.ID,
				Data: dc.Doc.Data(),
			})
		}
		fn(changes)
	}
}

func convertKind(k firestore.DocumentChangeKind) ChangeKind {
	switch k {
	case firestore.DocumentRemoved:
		return Removed
	case firestore.DocumentModified:
		return Modified
	default:
		return Added
	}
}

func (s *FirestoreStore) ListenDoc(ctx context.Context, collection, id string, fn func(Change)) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	it := client.Collection(collection).Doc(id).Snapshots(ctx)
	defer it.Stop()

	exists := false
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) {
				return ctx.Err()
			}
			return fmt.Errorf("document listener on %s/%s failed: %w", collection, id, err)
		}
		if !snap.Exists() {
			if exists {
				fn(Change{Kind: Removed, ID: id})
			}
			exists = false
			continue
		}
		kind := Added
		if exists {
			kind = Modified
		}
		exists = true
		fn(Change{Kind: kind, ID: id, Data: snap.Data()})
	}
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	ref := client.Collection(collection).Doc(id)
	if merge {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", err
	}
	ref, _, err := client.Collection(collection).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}
	if _, err := client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// maxBatchWrites is the Firestore limit on writes per batch.
const maxBatchWrites = 500

// Commit writes in batches of at most maxBatchWrites. Each batch is atomic; a
// larger set is not.
func (s *FirestoreStore) Commit(ctx context.Context, writes []Write) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	for start := 0; start < len(writes); start += maxBatchWrites {
		end := min(start+maxBatchWrites, len(writes))
		batch := client.Batch()
		for _, w := range writes[start:end] {
			ref := client.Collection(w.Collection).Doc(w.ID)
			switch w.Op {
			case OpDelete:
				batch.Delete(ref)
			case OpMerge:
				batch.Set(ref, w.Data, firestore.MergeAll)
			default:
				batch.Set(ref, w.Data)
			}
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit writes %d-%d of %d: %w", start, end, len(writes), err)
		}
	}
	return nil
}

func (s *FirestoreStore) Empty(ctx context.Context, collection string) (bool, error) {
	client, err := s.getClient()
	if err != nil {
		return false, err
	}
	docs, err := client.Collection(collection).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return len(docs) == 0, nil
}

func (s *FirestoreStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
