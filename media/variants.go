package media

import (
	"net/http"
	"strconv"
)

// Variant names the rendition requested with ?size=. Pixels are never touched here;
// the edge proxy resizes according to the CF-Image-* hint headers.
type Variant string

const (
	VariantOriginal  Variant = "original"
	VariantThumbnail Variant = "thumbnail"
	VariantMedium    Variant = "medium"
)

const (
	HeaderImageFit    = "CF-Image-Fit"
	HeaderImageWidth  = "CF-Image-Width"
	HeaderImageHeight = "CF-Image-Height"
)

type ResizeHint struct {
	Fit    string
	Width  int
	Height int // 0 preserves aspect ratio
}

var resizeHints = map[Variant]ResizeHint{
	VariantThumbnail: {Fit: "cover", Width: 300, Height: 300},
	VariantMedium:    {Fit: "scale-down", Width: 800},
}

// ParseVariant maps a size query value to a Variant; anything unknown is the original.
func ParseVariant(size string) Variant {
	switch Variant(size) {
	case VariantThumbnail:
		return VariantThumbnail
	case VariantMedium:
		return VariantMedium
	default:
		return VariantOriginal
	}
}

func (v Variant) Hint() (ResizeHint, bool) {
	hint, ok := resizeHints[v]
	return hint, ok
}

// Apply writes the hint as response headers.
func (h ResizeHint) Apply(header http.Header) {
	header.Set(HeaderImageFit, h.Fit)
	if h.Width > 0 {
		header.Set(HeaderImageWidth, strconv.Itoa(h.Width))
	}
	if h.Height > 0 {
		header.Set(HeaderImageHeight, strconv.Itoa(h.Height))
	}
}
