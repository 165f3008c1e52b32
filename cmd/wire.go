package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/camden-git/photogallery/config"
	"github.com/camden-git/photogallery/database"
	"github.com/camden-git/photogallery/events"
	"github.com/camden-git/photogallery/media"
	"github.com/camden-git/photogallery/repository"
)

// stores holds the backends selected by configuration and closes them in reverse order.
type stores struct {
	metadata  repository.KeyValueStore
	blobs     media.Store
	publisher events.Publisher

	closers []func() error
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *stores, retErr error) {
	s := &stores{}
	defer func() {
		if retErr != nil {
			retErr = errors.Join(retErr, s.Close())
		}
	}()

	metadata, err := openMetadataStore(ctx, cfg.Metadata, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	s.metadata = metadata
	s.closers = append(s.closers, metadata.Close)
	logger.Info("metadata store ready", "backend", cfg.Metadata.Backend)

	blobs, closeBlobs, err := openBlobStore(ctx, cfg.Blob, logger)
	if err != nil {
		return nil, err
	}
	s.blobs = blobs
	if closeBlobs != nil {
		s.closers = append(s.closers, closeBlobs)
	}
	logger.Info("blob store ready", "backend", cfg.Blob.Backend)

	if cfg.NATS.URL == "" {
		s.publisher = events.NopPublisher{}
	} else {
		publisher, err := events.NewNATSPublisher(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		s.publisher = publisher
		logger.Info("publishing photo events", "url", cfg.NATS.URL, "subject_prefix", cfg.NATS.SubjectPrefix)
	}
	s.closers = append(s.closers, s.publisher.Close)

	return s, nil
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func openMetadataStore(ctx context.Context, cfg config.MetadataConfig, logLevel string) (repository.KeyValueStore, error) {
	switch cfg.Backend {
	case config.MetadataBackendBadger:
		return repository.NewBadgerStore(cfg.BadgerPath)
	case config.MetadataBackendSQLite:
		db, err := database.InitGormDB(cfg.SQLitePath, logLevel)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLStore(db)
	case config.MetadataBackendFirestore:
		return repository.NewFirestoreStore(ctx, cfg.FirestoreProject, cfg.FirestoreCollection, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.Backend)
	}
}

func openBlobStore(ctx context.Context, cfg config.BlobConfig, logger *slog.Logger) (media.Store, func() error, error) {
	switch cfg.Backend {
	case config.BlobBackendLocal:
		store, err := media.NewLocalStorage(cfg.MediaStoragePath, logger)
		return store, nil, err
	case config.BlobBackendMinio:
		store, err := media.NewMinioStorage(ctx, cfg.Minio, logger)
		return store, nil, err
	case config.BlobBackendGCS:
		store, err := media.NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSCredentials)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}
