package models

import "time"

// Photo is the metadata record stored for every uploaded image.
// It is serialized as JSON under its ID in the metadata store.
type Photo struct {
	ID           string       `json:"id"`
	FileName     string       `json:"fileName"`     // ID plus lower-cased extension, names the blobs
	OriginalName string       `json:"originalName"` // client supplied filename
	Size         int64        `json:"size"`         // bytes
	MimeType     string       `json:"mimeType"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	UploadedAt   time.Time    `json:"uploadedAt"`
	UpdatedAt    *time.Time   `json:"updatedAt,omitempty"` // Nullable, set by every update
	Exif         *ExifSummary `json:"exif,omitempty"`      // Nullable
}

// ExifSummary holds the few camera tags read from the upload, when present.
type ExifSummary struct {
	CameraMake  *string    `json:"cameraMake,omitempty"`
	CameraModel *string    `json:"cameraModel,omitempty"`
	TakenAt     *time.Time `json:"takenAt,omitempty"`
}

func (e *ExifSummary) IsEmpty() bool {
	return e == nil || (e.CameraMake == nil && e.CameraModel == nil && e.TakenAt == nil)
}
