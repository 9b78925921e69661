package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
)

// siteResponse is the settings row plus the number guests should message.
type siteResponse struct {
	domain.SiteSettings
	WhatsApp string `json:"whatsapp"`
}

func (h *Handlers) getSite(w http.ResponseWriter, r *http.Request) {
	s, err := h.Site.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, siteResponse{SiteSettings: s, WhatsApp: app.WhatsAppNumber(s)})
}

func (h *Handlers) listContent(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Content.List(r.Context(), domain.Table(chi.URLParam(r, "table")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, rows)
}

func (h *Handlers) listGallery(w http.ResponseWriter, r *http.Request) {
	out, err := h.Gallery.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) submitStay(w http.ResponseWriter, r *http.Request) {
	var in app.StayInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Enquiries.SubmitStay(r.Context(), in, r.URL.Query().Get("utm_source"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) submitEvent(w http.ResponseWriter, r *http.Request) {
	var in app.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Enquiries.SubmitEvent(r.Context(), in, r.URL.Query().Get("utm_source"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
