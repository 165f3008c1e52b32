package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camden-git/photogallery/models"
)

// ErrCorruptRecord marks a stored value that is not a valid photo record.
var ErrCorruptRecord = errors.New("corrupt photo record")

// PhotoRepository stores models.Photo as JSON in any KeyValueStore.
type PhotoRepository struct {
	store KeyValueStore
}

func NewPhotoRepository(store KeyValueStore) *PhotoRepository {
	return &PhotoRepository{store: store}
}

func (r *PhotoRepository) Get(ctx context.Context, id string) (*models.Photo, error) {
	raw, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var photo models.Photo
	if err := json.Unmarshal(raw, &photo); err != nil {
		return nil, fmt.Errorf("photo %q: %w: %v", id, ErrCorruptRecord, err)
	}
	// the key is authoritative
	photo.ID = id
	return &photo, nil
}

func (r *PhotoRepository) Save(ctx context.Context, photo *models.Photo) error {
	if photo == nil || photo.ID == "" {
		return errors.New("photo record requires an id")
	}
	raw, err := json.Marshal(photo)
	if err != nil {
		return fmt.Errorf("failed to encode photo %q: %w", photo.ID, err)
	}
	return r.store.Put(ctx, photo.ID, raw)
}

func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

func (r *PhotoRepository) IDs(ctx context.Context) ([]string, error) {
	return r.store.Keys(ctx)
}
