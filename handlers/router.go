package handlers

import (
	"log/slog"
	"net/http"

	"github.com/camden-git/photogallery/auth"
	"github.com/camden-git/photogallery/config"
	"github.com/camden-git/photogallery/media"
	"github.com/camden-git/photogallery/realtime"
	"github.com/camden-git/photogallery/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
)

const loginPagePath = "/admin/login"

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// NewRouter wires every route. Mutating API routes require a session; /admin redirects to the login page instead.
// live may be nil, in which case /events is not served.
func NewRouter(cfg config.Config, logger *slog.Logger, gate *auth.Gate, photos PhotoService, live *realtime.Hub) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: corsMethods,
		AllowedHeaders: corsHeaders,
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(corsHandler.Handler)
	r.Use(Preflight(cfg.CORS.AllowedOrigins))
	r.Use(Recoverer(logger))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	authHandler := NewAuthHandler(gate, logger)
	photoHandler := &PhotoHandler{Photos: photos, MaxUploadBytes: cfg.Upload.MaxBytes, Logger: logger}
	pageHandler := &PageHandler{Logger: logger}

	r.Get("/healthz", healthz)

	// JSON and HTML are compressed; image bytes are already compressed formats
	r.Group(func(r chi.Router) {
		r.Use(gzipMiddleware)

		r.Get("/", pageHandler.Serve(web.PageIndex))
		r.Get("/index.html", pageHandler.Serve(web.PageIndex))
		r.Get(loginPagePath, pageHandler.Serve(web.PageLogin))
		r.With(RequireSessionOrRedirect(gate, loginPagePath)).Get("/admin", pageHandler.Serve(web.PageAdmin))

		r.Route("/api", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Route("/photos", func(r chi.Router) {
				r.Get("/", photoHandler.ListPhotos)

				r.Group(func(r chi.Router) {
					r.Use(RequireSession(gate))
					r.Post("/", photoHandler.UploadPhoto)
					r.Put("/{id}", photoHandler.UpdatePhoto)
					r.Delete("/{id}", photoHandler.DeletePhoto)
				})
			})
		})
	})

	r.Route("/images", func(r chi.Router) {
		r.Use(middleware.GetHead)
		r.Get("/originals/{fileName}", photoHandler.ImageServer(media.VariantOriginal))
		r.Get("/thumbnails/{fileName}", photoHandler.ImageServer(media.VariantThumbnail))
	})

	if live != nil {
		r.Get("/events", live.ServeWS)
	}

	return r
}

func gzipMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
