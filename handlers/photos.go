package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/camden-git/photogallery/apperrors"
	"github.com/camden-git/photogallery/media"
	"github.com/camden-git/photogallery/models"
	"github.com/camden-git/photogallery/services"
	"github.com/go-chi/chi/v5"
)

const (
	maxUpdateBodyBytes = 1 << 20
	multipartMemory    = 8 << 20 // larger parts spill to temp files
)

// PhotoService is what the HTTP layer needs from services.PhotoService.
type PhotoService interface {
	ListPhotos(ctx context.Context) ([]models.Photo, error)
	UploadPhoto(ctx context.Context, in services.UploadInput) (*models.Photo, error)
	UpdatePhoto(ctx context.Context, id string, in services.UpdateInput) (*models.Photo, error)
	DeletePhoto(ctx context.Context, id string) error
	GetImage(ctx context.Context, fileName string, variant media.Variant) (*services.Image, error)
}

type PhotoHandler struct {
	Photos         PhotoService
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type uploadForm struct {
	Title       string `validate:"max=256"`
	Description string `validate:"max=4096"`
}

type uploadResponse struct {
	Success  bool          `json:"success"`
	PhotoID  string        `json:"photoId"`
	Metadata *models.Photo `json:"metadata"`
}

type updateResponse struct {
	Success  bool          `json:"success"`
	Metadata *models.Photo `json:"metadata"`
}

// ListPhotos handles GET /api/photos
func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.Photos.ListPhotos(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	writeJSON(w, http.StatusOK, photos)
}

// UploadPhoto handles POST /api/photos (multipart: file, title, description)
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			writeError(w, h.Logger, apperrors.PayloadTooLarge("Upload exceeds the size limit", err))
			return
		}
		writeError(w, h.Logger, apperrors.Validation("Invalid multipart form", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.Logger, apperrors.Validation("No file uploaded", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.Logger, apperrors.Validation("Failed to read uploaded file", err))
		return
	}

	form := uploadForm{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if err := validate.Struct(form); err != nil {
		writeError(w, h.Logger, apperrors.Validation(err.Error(), err))
		return
	}

	photo, err := h.Photos.UploadPhoto(r.Context(), services.UploadInput{
		Content:      content,
		MimeType:     header.Header.Get("Content-Type"),
		OriginalName: header.Filename,
		Title:        form.Title,
		Description:  form.Description,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{Success: true, PhotoID: photo.ID, Metadata: photo})
}

// UpdatePhoto handles PUT /api/photos/{id} with a JSON body {title?, description?}.
// Fields other than title and description are ignored.
func (h *PhotoHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBodyBytes)

	var in services.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, h.Logger, apperrors.Validation("Invalid JSON body", err))
		return
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, h.Logger, apperrors.Validation(err.Error(), err))
		return
	}

	photo, err := h.Photos.UpdatePhoto(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{Success: true, Metadata: photo})
}

// DeletePhoto handles DELETE /api/photos/{id}
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.Photos.DeletePhoto(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
