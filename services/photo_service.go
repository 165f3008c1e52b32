package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/camden-git/photogallery/apperrors"
	"github.com/camden-git/photogallery/events"
	"github.com/camden-git/photogallery/media"
	"github.com/camden-git/photogallery/models"
	"github.com/camden-git/photogallery/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// ImageCacheControl is sent with every image; file names never change content.
	ImageCacheControl = "public, max-age=31536000"

	defaultFetchConcurrency = 8
)

// MetadataStore is the record side of a photo; repository.PhotoRepository implements it.
type MetadataStore interface {
	Get(ctx context.Context, id string) (*models.Photo, error)
	Save(ctx context.Context, photo *models.Photo) error
	Delete(ctx context.Context, id string) error
	IDs(ctx context.Context) ([]string, error)
}

type UploadInput struct {
	Content      []byte
	MimeType     string // as declared by the client, may be empty
	OriginalName string
	Title        string
	Description  string
}

// UpdateInput carries the only two mutable fields. Nil leaves a field unchanged.
type UpdateInput struct {
	Title       *string `json:"title" validate:"omitempty,max=256"`
	Description *string `json:"description" validate:"omitempty,max=4096"`
}

// Image is an open original blob plus the headers it must be served with.
type Image struct {
	Body   io.ReadCloser
	Size   int64
	ETag   string
	Header http.Header
}

// PhotoService keeps each metadata record and its blobs consistent.
// Store calls run on a context detached from request cancellation so a
// mutation that has started is not abandoned halfway when the client goes away.
type PhotoService struct {
	metadata MetadataStore
	blobs    media.Store
	events   events.Publisher
	logger   *slog.Logger

	now              func() time.Time
	newID            func() string
	fetchConcurrency int
}

type Option func(*PhotoService)

func WithClock(now func() time.Time) Option {
	return func(s *PhotoService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *PhotoService) { s.newID = newID }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *PhotoService) { s.events = p }
}

func WithFetchConcurrency(n int) Option {
	return func(s *PhotoService) {
		if n > 0 {
			s.fetchConcurrency = n
		}
	}
}

func NewPhotoService(metadata MetadataStore, blobs media.Store, logger *slog.Logger, opts ...Option) *PhotoService {
	s := &PhotoService{
		metadata:         metadata,
		blobs:            blobs,
		events:           events.NopPublisher{},
		logger:           logger,
		now:              time.Now,
		newID:            uuid.NewString,
		fetchConcurrency: defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPhotos returns every readable record, newest upload first. Ties keep store order.
func (s *PhotoService) ListPhotos(ctx context.Context) ([]models.Photo, error) {
	ids, err := s.metadata.IDs(ctx)
	if err != nil {
		return nil, apperrors.Unexpected(fmt.Errorf("failed to enumerate photo records: %w", err))
	}

	records := make([]*models.Photo, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			photo, err := s.metadata.Get(gctx, id)
			switch {
			case err == nil:
				records[i] = photo
			case errors.Is(err, repository.ErrCorruptRecord), errors.Is(err, repository.ErrKeyNotFound):
				s.logger.Warn("skipping unreadable photo record", "photo_id", id, "error", err)
			default:
				return fmt.Errorf("failed to read photo record %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Unexpected(err)
	}

	photos := make([]models.Photo, 0, len(ids))
	for _, photo := range records {
		if photo != nil {
			photos = append(photos, *photo)
		}
	}
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].UploadedAt.After(photos[j].UploadedAt)
	})
	return photos, nil
}

// UploadPhoto writes the original blob first and the record second. If the record
// cannot be written the blob is removed again; a failed removal leaves an orphan
// for the Reconciler.
func (s *PhotoService) UploadPhoto(ctx context.Context, in UploadInput) (*models.Photo, error) {
	if len(in.Content) == 0 {
		return nil, apperrors.Validation("uploaded file is empty", nil)
	}
	ctx = context.WithoutCancel(ctx)

	id := s.newID()
	fileName := media.FileNameFor(id, in.OriginalName)
	mimeType := media.DetectContentType(in.MimeType, in.Content)
	key := media.OriginalKey(fileName)

	if _, err := s.blobs.Put(ctx, key, bytes.NewReader(in.Content), int64(len(in.Content)), mimeType); err != nil {
		return nil, apperrors.Unexpected(fmt.Errorf("failed to store original %s: %w", key, err))
	}

	title := in.Title
	if title == "" {
		title = in.OriginalName
	}
	photo := &models.Photo{
		ID:           id,
		FileName:     fileName,
		OriginalName: in.OriginalName,
		Size:         int64(len(in.Content)),
		MimeType:     mimeType,
		Title:        title,
		Description:  in.Description,
		UploadedAt:   s.now().UTC(),
		Exif:         media.ReadExifSummary(in.Content),
	}

	if err := s.metadata.Save(ctx, photo); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to remove blob after metadata write failed; left for reconcile",
				"photo_id", id, "key", key, "error", delErr)
		}
		return nil, apperrors.Unexpected(fmt.Errorf("failed to save photo record %s: %w", id, err))
	}

	s.logger.Info("photo uploaded", "photo_id", id, "file_name", fileName, "size", photo.Size)
	s.publish(ctx, events.TypePhotoUploaded, photo)
	return photo, nil
}

// UpdatePhoto changes title and/or description. updatedAt strictly increases
// across consecutive updates of one record even if the clock does not.
func (s *PhotoService) UpdatePhoto(ctx context.Context, id string, in UpdateInput) (*models.Photo, error) {
	ctx = context.WithoutCancel(ctx)

	photo, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		photo.Title = *in.Title
	}
	if in.Description != nil {
		photo.Description = *in.Description
	}

	updatedAt := s.now().UTC()
	if photo.UpdatedAt != nil && !updatedAt.After(*photo.UpdatedAt) {
		updatedAt = photo.UpdatedAt.Add(time.Nanosecond)
	}
	photo.UpdatedAt = &updatedAt

	if err := s.metadata.Save(ctx, photo); err != nil {
		return nil, apperrors.Unexpected(fmt.Errorf("failed to save photo record %s: %w", id, err))
	}

	s.publish(ctx, events.TypePhotoUpdated, photo)
	return photo, nil
}

// DeletePhoto removes both blobs and then the record, so an interrupted delete
// leaves a record that a retry can finish. A record that cannot be decoded names
// no blobs; only its key is removed and any blobs are left to the Reconciler.
func (s *PhotoService) DeletePhoto(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)

	photo, err := s.getRecord(ctx, id)
	if errors.Is(err, repository.ErrCorruptRecord) {
		return s.deleteCorruptRecord(ctx, id, err)
	}
	if err != nil {
		return err
	}

	originalKey := media.OriginalKey(photo.FileName)
	if err := s.blobs.Delete(ctx, originalKey); err != nil {
		return apperrors.Unexpected(fmt.Errorf("failed to delete original %s: %w", originalKey, err))
	}

	thumbnailKey := media.ThumbnailKey(photo.FileName)
	if err := s.blobs.Delete(ctx, thumbnailKey); err != nil {
		s.logger.Warn("failed to delete thumbnail", "photo_id", id, "key", thumbnailKey, "error", err)
	}

	if err := s.metadata.Delete(ctx, id); err != nil {
		return apperrors.Unexpected(fmt.Errorf("failed to delete photo record %s: %w", id, err))
	}

	s.logger.Info("photo deleted", "photo_id", id)
	s.publish(ctx, events.TypePhotoDeleted, &models.Photo{ID: id, FileName: photo.FileName})
	return nil
}

// GetImage opens originals/<fileName>. Variants only add resize hints; the
// original is returned for every variant.
func (s *PhotoService) GetImage(ctx context.Context, fileName string, variant media.Variant) (*Image, error) {
	key := media.OriginalKey(fileName)
	if strings.Contains(fileName, "/") {
		return nil, apperrors.Validation("Invalid image path", nil)
	}
	if err := media.ValidateKey(key); err != nil {
		return nil, apperrors.Validation("Invalid image path", err)
	}

	body, info, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, apperrors.NotFound("Image", err)
		}
		return nil, apperrors.Unexpected(err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(http.Header)
	header.Set("Content-Type", contentType)
	header.Set("Cache-Control", ImageCacheControl)
	if info.ETag != "" {
		header.Set("ETag", info.ETag)
	}
	if hint, ok := variant.Hint(); ok {
		hint.Apply(header)
	}

	return &Image{Body: body, Size: info.Size, ETag: info.ETag, Header: header}, nil
}

func (s *PhotoService) deleteCorruptRecord(ctx context.Context, id string, cause error) error {
	s.logger.Warn("deleting unreadable photo record", "photo_id", id, "error", cause)
	if err := s.metadata.Delete(ctx, id); err != nil {
		return apperrors.Unexpected(fmt.Errorf("failed to delete photo record %s: %w", id, err))
	}
	s.publish(ctx, events.TypePhotoDeleted, &models.Photo{ID: id})
	return nil
}

func (s *PhotoService) getRecord(ctx context.Context, id string) (*models.Photo, error) {
	photo, err := s.metadata.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return nil, apperrors.NotFound("Photo", err)
		}
		return nil, apperrors.Unexpected(err)
	}
	return photo, nil
}

func (s *PhotoService) publish(ctx context.Context, eventType string, photo *models.Photo) {
	event := events.Event{
		Type:      eventType,
		PhotoID:   photo.ID,
		Timestamp: s.now().UTC(),
	}
	if eventType != events.TypePhotoDeleted {
		event.Photo = photo
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish photo event", "type", eventType, "photo_id", photo.ID, "error", err)
	}
}
