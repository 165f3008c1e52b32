package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/camden-git/photogallery/media"
	"github.com/camden-git/photogallery/repository"
)

// DefaultOrphanMinAge keeps reconcile away from uploads whose record is still being written.
const DefaultOrphanMinAge = time.Hour

// ReconcileReport lists what a reconcile pass found and what it removed.
type ReconcileReport struct {
	Records         int      `json:"records"`
	Blobs           int      `json:"blobs"`
	OrphanBlobs     []string `json:"orphanBlobs"`     // blob keys no record refers to
	RemovedBlobs    []string `json:"removedBlobs"`    // orphans actually deleted
	SkippedBlobs    []string `json:"skippedBlobs"`    // orphans younger than MinAge
	DanglingRecords []string `json:"danglingRecords"` // record ids whose original is missing
	CorruptRecords  []string `json:"corruptRecords"`
}

// Reconciler repairs the partial failures the upload and delete paths can leave behind.
// It only ever deletes blobs; records are reported, never removed.
type Reconciler struct {
	metadata MetadataStore
	blobs    media.Store
	logger   *slog.Logger
	now      func() time.Time

	MinAge time.Duration
}

func NewReconciler(metadata MetadataStore, blobs media.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		metadata: metadata,
		blobs:    blobs,
		logger:   logger,
		now:      time.Now,
		MinAge:   DefaultOrphanMinAge,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	report := &ReconcileReport{
		OrphanBlobs:     []string{},
		RemovedBlobs:    []string{},
		SkippedBlobs:    []string{},
		DanglingRecords: []string{},
		CorruptRecords:  []string{},
	}

	ids, err := r.metadata.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate photo records: %w", err)
	}

	// fileName -> record id
	known := make(map[string]string, len(ids))
	for _, id := range ids {
		photo, err := r.metadata.Get(ctx, id)
		switch {
		case err == nil:
			known[photo.FileName] = id
		case errors.Is(err, repository.ErrCorruptRecord):
			report.CorruptRecords = append(report.CorruptRecords, id)
		case errors.Is(err, repository.ErrKeyNotFound):
			// deleted while we were listing
		default:
			return nil, fmt.Errorf("failed to read photo record %s: %w", id, err)
		}
	}
	report.Records = len(known)

	haveOriginal := make(map[string]bool, len(known))
	for _, prefix := range []string{media.OriginalsPrefix, media.ThumbnailsPrefix} {
		objects, err := r.blobs.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs under %s: %w", prefix, err)
		}
		report.Blobs += len(objects)

		for _, obj := range objects {
			fileName := media.FileNameFromKey(obj.Key)
			if _, ok := known[fileName]; ok {
				if prefix == media.OriginalsPrefix {
					haveOriginal[fileName] = true
				}
				continue
			}

			report.OrphanBlobs = append(report.OrphanBlobs, obj.Key)
			if !obj.LastModified.IsZero() && r.now().Sub(obj.LastModified) < r.MinAge {
				report.SkippedBlobs = append(report.SkippedBlobs, obj.Key)
				continue
			}
			if dryRun {
				continue
			}
			if err := r.blobs.Delete(ctx, obj.Key); err != nil {
				r.logger.Error("failed to remove orphan blob", "key", obj.Key, "error", err)
				continue
			}
			r.logger.Info("removed orphan blob", "key", obj.Key)
			report.RemovedBlobs = append(report.RemovedBlobs, obj.Key)
		}
	}

	for fileName, id := range known {
		if !haveOriginal[fileName] {
			report.DanglingRecords = append(report.DanglingRecords, id)
		}
	}
	sort.Strings(report.DanglingRecords)

	return report, nil
}
