package media

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

var extensionPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// DetectContentType trusts the declared multipart type unless it is missing or generic,
// in which case the leading bytes are sniffed.
func DetectContentType(declared string, content []byte) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && mediaType != defaultContentType {
			return mediaType
		}
	}
	if len(content) == 0 {
		return defaultContentType
	}
	return mimetype.Detect(content).String()
}

// FileNameFor derives the blob file name from the photo id and the client's filename.
// Extensions that are empty or not plain alphanumerics are dropped.
func FileNameFor(id, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !extensionPattern.MatchString(ext) {
		return id
	}
	return id + ext
}
