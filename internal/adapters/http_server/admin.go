package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string      `json:"access_token,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	User        domain.User `json:"user"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.Auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	out := sessionResponse{AccessToken: sess.AccessToken, User: sess.User}
	if !sess.ExpiresAt.IsZero() {
		c.Expires = sess.ExpiresAt
		out.ExpiresAt = &sess.ExpiresAt
	}
	http.SetCookie(w, c)
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.SignOut(r.Context(), sessionToken(r)); err != nil {
		log.Warn().Err(err).Msg("sign out failed")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) {
	admin, _ := adminFrom(r.Context())
	writeJSON(w, http.StatusOK, admin)
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Site.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) saveSettings(w http.ResponseWriter, r *http.Request) {
	var in domain.SiteSettings
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Site.SaveSettings(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) uploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+1<<20)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, formErr(err, "file"))
		return
	}
	defer f.Close()
	if hdr.Size > h.MaxUploadBytes {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "image is larger than the upload limit")
		return
	}

	url, err := h.Site.UploadAsset(r.Context(), chi.URLParam(r, "field"), hdr.Filename, hdr.Header.Get("Content-Type"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseLeadKind(chi.URLParam(r, "kind"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "lead kind must be stays or events")
		return
	}
	rows, err := h.Enquiries.List(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handlers) updateLead(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseLeadKind(chi.URLParam(r, "kind"))
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "lead kind must be stays or events")
		return
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.Enquiries.UpdateStatus(r.Context(), kind, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handlers) adminListContent(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Content.List(r.Context(), domain.Table(chi.URLParam(r, "table")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handlers) saveContent(w http.ResponseWriter, r *http.Request) {
	var in domain.Record
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	row, err := h.Content.Save(r.Context(), domain.Table(chi.URLParam(r, "table")), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handlers) deleteContent(w http.ResponseWriter, r *http.Request) {
	if err := h.Content.Delete(r.Context(), domain.Table(chi.URLParam(r, "table")), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.Gallery.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
