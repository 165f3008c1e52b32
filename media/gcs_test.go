package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
)

func TestGCSStorage_Translate(t *testing.T) {
	s := &GCSStorage{}

	err := s.translate("thumbnails/a.jpg", storage.ErrObjectNotExist)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "thumbnails/a.jpg")

	err = s.translate("thumbnails/a.jpg", fmt.Errorf("attrs: %w", storage.ErrObjectNotExist))
	assert.ErrorIs(t, err, ErrNotFound, "wrapped not-exist errors still map")

	quota := errors.New("quota exceeded")
	err = s.translate("thumbnails/a.jpg", quota)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, quota)
}

func TestGCSStorage_RejectsInvalidKeysWithoutCallingServer(t *testing.T) {
	s := &GCSStorage{}
	ctx := context.Background()

	_, err := s.Put(ctx, "originals/../../etc/passwd", bytes.NewReader(nil), 0, "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, _, err = s.Get(ctx, "originals\\a.jpg")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrInvalidKey)
}
