package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
)

type Handlers struct {
	Site      *app.SiteService
	Content   *app.ContentService
	Enquiries *app.EnquiryService
	Gallery   *app.GalleryService
	Uploads   *app.UploadQueue
	Auth      *app.AuthService

	// MaxUploadBytes caps a single uploaded file.
	MaxUploadBytes int64
	CookieSecure   bool
	EnquiryLimiter *IPLimiter
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

const (
	maxJSONBody  = 1 << 20
	maxBatchSize = 50
)

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Timeout(15 * time.Second))
			r.Get("/site", h.getSite)
			r.Get("/content/{table}", h.listContent)
			r.Get("/gallery", h.listGallery)

			r.Group(func(r chi.Router) {
				if h.EnquiryLimiter != nil {
					r.Use(h.EnquiryLimiter.Middleware)
				}
				r.Post("/enquiries/stay", h.submitStay)
				r.Post("/enquiries/event", h.submitEvent)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(Timeout(15*time.Second)).Post("/login", h.login)
			r.With(Timeout(15*time.Second)).Post("/logout", h.logout)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(h.Auth))
				r.Use(Timeout(15 * time.Second))
				r.Get("/session", h.session)
				r.Get("/settings", h.getSettings)
				r.Put("/settings", h.saveSettings)
				r.Get("/leads/{kind}", h.listLeads)
				r.Patch("/leads/{kind}/{id}", h.updateLead)
				r.Get("/content/{table}", h.adminListContent)
				r.Put("/content/{table}", h.saveContent)
				r.Delete("/content/{table}/{id}", h.deleteContent)
				r.Get("/gallery", h.listGallery)
				r.Delete("/gallery/{id}", h.deleteImage)
				r.Get("/gallery/batches/{id}", h.getBatch)
			})

			// uploads and streams run without the request timeout
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(h.Auth))
				r.Post("/settings/assets/{field}", h.uploadAsset)
				r.Post("/gallery/batches", h.createBatch)
				r.Get("/gallery/batches/{id}/events", h.batchEvents(s.origins))
			})
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Invalid Input", Status: http.StatusBadRequest, Detail: ve.Error(), Field: ve.Field})
	case errors.As(err, &tooBig):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "request body is too large")
	case errors.Is(err, domain.ErrBadRequest):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", "access denied: this account is not an admin")
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		log.Warn().Err(err).Str("route", routeOf(r)).Msg("backend unavailable")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "the backend is unavailable, please try again")
	default:
		log.Error().Err(err).Str("route", routeOf(r)).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v with a weak ETag, or 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return domain.Invalid("body", "must be valid JSON")
	}
	return nil
}
