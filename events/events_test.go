package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "gallery.photo.uploaded", Subject("gallery", TypePhotoUploaded))
	assert.Equal(t, "photo.deleted", Subject("", TypePhotoDeleted))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypePhotoUpdated, PhotoID: "x"}))
	assert.NoError(t, p.Close())
}

type countingPublisher struct {
	published []string
	err       error
	closed    bool
}

func (p *countingPublisher) Publish(_ context.Context, event Event) error {
	p.published = append(p.published, event.PhotoID)
	return p.err
}

func (p *countingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestFanout(t *testing.T) {
	failing := &countingPublisher{err: errors.New("broker down")}
	healthy := &countingPublisher{}
	p := Fanout(failing, healthy)

	err := p.Publish(context.Background(), Event{Type: TypePhotoUploaded, PhotoID: "a"})
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, []string{"a"}, healthy.published, "a failing publisher does not starve the others")

	assert.NoError(t, p.Close())
	assert.True(t, failing.closed)
	assert.True(t, healthy.closed)
}
