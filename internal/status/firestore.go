package status

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// FirestoreSource watches documents of one Firestore collection keyed by uid.
type FirestoreSource struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreSource(ctx context.Context, projectID, credentialsFile, collection string) (*FirestoreSource, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	return &FirestoreSource{client: client, collection: collection}, nil
}

func (s *FirestoreSource) Watch(ctx context.Context, uid string, fn func(map[string]any, bool)) error {
	iter := s.client.Collection(s.collection).Doc(uid).Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("status snapshot: %w", err)
		}
		if snap == nil || !snap.Exists() {
			fn(nil, false)
			continue
		}
		fn(snap.Data(), true)
	}
}

func (s *FirestoreSource) Close() error {
	return s.client.Close()
}
