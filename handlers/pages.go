package handlers

import (
	"log/slog"
	"net/http"

	"github.com/camden-git/photogallery/web"
)

type PageHandler struct {
	Logger *slog.Logger
}

// Serve writes one embedded HTML page.
func (h *PageHandler) Serve(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := web.Page(name)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
