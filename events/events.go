package events

import (
	"context"
	"errors"
	"time"

	"github.com/camden-git/photogallery/models"
)

const (
	TypePhotoUploaded = "photo.uploaded"
	TypePhotoUpdated  = "photo.updated"
	TypePhotoDeleted  = "photo.deleted"
)

// Event is published after a photo mutation has been committed to both stores.
type Event struct {
	Type      string        `json:"type"`
	PhotoID   string        `json:"photoId"`
	Photo     *models.Photo `json:"photo,omitempty"` // nil for deletions
	Timestamp time.Time     `json:"timestamp"`
}

// Publisher delivers events; publish failures are reported but never roll back a mutation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when NATS_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// Subject joins the configured prefix and the event type, e.g. "gallery.photo.uploaded".
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Fanout delivers every event to each publisher in turn.
func Fanout(publishers ...Publisher) Publisher {
	return fanout(publishers)
}

type fanout []Publisher

func (f fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
