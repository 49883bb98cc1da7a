package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"seedbazaar/internal/domain/repository"
	"seedbazaar/pkg/errors"
)

const stateCollection = "client_state"

type stateDocument struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// firestoreStateRepository stores each key as a document under
// client_state/{deviceID}/keys, so read state follows the user across
// reinstalls of the same device id.
type firestoreStateRepository struct {
	client   *firestore.Client
	deviceID string
}

func NewFirestoreStateRepository(client *firestore.Client, deviceID string) repository.StateRepository {
	return &firestoreStateRepository{
		client:   client,
		deviceID: deviceID,
	}
}

func (r *firestoreStateRepository) keys() *firestore.CollectionRef {
	return r.client.Collection(stateCollection).Doc(r.deviceID).Collection("keys")
}

func (r *firestoreStateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	doc, err := r.keys().Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, errors.Internal("Failed to get state", err)
	}

	var state stateDocument
	if err := doc.DataTo(&state); err != nil {
		return "", false, errors.Internal("Failed to parse state", err)
	}
	return state.Value, true, nil
}

func (r *firestoreStateRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.keys().Doc(key).Set(ctx, stateDocument{
		Value:     value,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return errors.Internal("Failed to save state", err)
	}
	return nil
}

func (r *firestoreStateRepository) Delete(ctx context.Context, key string) error {
	_, err := r.keys().Doc(key).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return errors.Internal("Failed to delete state", err)
	}
	return nil
}

// Reset removes every key stored for the device.
func (r *firestoreStateRepository) Reset(ctx context.Context) error {
	iter := r.keys().Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Internal("Failed to list state", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return errors.Internal("Failed to delete state", err)
		}
	}
	return nil
}
