package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "image/jpeg", DetectContentType("image/jpeg", png), "declared type wins")
	assert.Equal(t, "image/webp", DetectContentType("image/webp; q=1", nil))
	assert.Equal(t, "image/png", DetectContentType("", png))
	assert.Equal(t, "image/png", DetectContentType("application/octet-stream", png))
	assert.Equal(t, "application/octet-stream", DetectContentType("", nil))
}

func TestFileNameFor(t *testing.T) {
	id := "3f2b"
	assert.Equal(t, "3f2b.jpg", FileNameFor(id, "Sunset.JPG"))
	assert.Equal(t, "3f2b.gz", FileNameFor(id, "archive.tar.gz"))
	assert.Equal(t, "3f2b", FileNameFor(id, "README"))
	assert.Equal(t, "3f2b", FileNameFor(id, ""))
	assert.Equal(t, "3f2b", FileNameFor(id, "trailing."))
	assert.Equal(t, "3f2b", FileNameFor(id, "weird.j p g"))
}

func TestReadExifSummary_NonImage(t *testing.T) {
	assert.Nil(t, ReadExifSummary([]byte("definitely not a jpeg")))
	assert.Nil(t, ReadExifSummary(nil))
}
