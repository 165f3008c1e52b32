package media

import (
	"bytes"
	"strings"

	"github.com/camden-git/photogallery/models"
	"github.com/rwcarlsen/goexif/exif"
)

// ReadExifSummary extracts camera tags from JPEG/TIFF bytes. It returns nil when the
// content has no EXIF block or none of the tags are present.
func ReadExifSummary(content []byte) *models.ExifSummary {
	exifData, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	summary := &models.ExifSummary{
		CameraMake:  getString(exifData, exif.Make),
		CameraModel: getString(exifData, exif.Model),
	}
	if takenAt, err := exifData.DateTime(); err == nil {
		takenAt = takenAt.UTC()
		summary.TakenAt = &takenAt
	}

	if summary.IsEmpty() {
		return nil
	}
	return summary
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val == "" {
		return nil
	}
	return &val
}
