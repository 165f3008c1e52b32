package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/camden-git/photogallery/media"
	"github.com/go-chi/chi/v5"
)

// ImageServer serves originals/{fileName}. The ?size= query selects a variant; when
// absent defaultVariant applies, which lets /images/thumbnails/{fileName} share this handler.
//
//	r.Get("/images/originals/{fileName}", h.ImageServer(media.VariantOriginal))
//	r.Get("/images/thumbnails/{fileName}", h.ImageServer(media.VariantThumbnail))
func (h *PhotoHandler) ImageServer(defaultVariant media.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variant := defaultVariant
		if size := r.URL.Query().Get("size"); size != "" {
			variant = media.ParseVariant(size)
		}

		img, err := h.Photos.GetImage(r.Context(), chi.URLParam(r, "fileName"), variant)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		defer img.Body.Close()

		for key, values := range img.Header {
			w.Header()[key] = values
		}

		if img.ETag != "" && r.Header.Get("If-None-Match") == img.ETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		if img.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(img.Size, 10))
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(w, img.Body); err != nil {
			h.Logger.Warn("failed to stream image", "path", r.URL.Path, "error", err)
		}
	}
}
