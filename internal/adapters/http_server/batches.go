package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
)

const (
	multipartMemory = 32 << 20
	wsWriteWait     = 10 * time.Second
	wsPongWait      = 60 * time.Second
)

func formErr(err error, field string) error {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return err
	case errors.Is(err, http.ErrMissingFile):
		return domain.Invalid(field, "is required")
	}
	return domain.Invalid(field, "must be sent as multipart/form-data")
}

func (h *Handlers) createBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes*maxBatchSize+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, formErr(err, "files"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	hdrs := r.MultipartForm.File["files"]
	hdrs = append(hdrs, r.MultipartForm.File["files[]"]...)
	if len(hdrs) == 0 {
		writeError(w, r, domain.Invalid("files", "at least one file is required"))
		return
	}
	if len(hdrs) > maxBatchSize {
		writeError(w, r, domain.Invalid("files", "at most 50 files per batch"))
		return
	}

	files := make([]app.UploadFile, 0, len(hdrs))
	for _, fh := range hdrs {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer f.Close()
		files = append(files, app.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	b, err := h.Uploads.Enqueue(r.Context(), files, r.FormValue("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/admin/gallery/batches/"+b.ID)
	writeJSON(w, http.StatusAccepted, b)
}

func (h *Handlers) getBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.Uploads.Batch(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// batchEvents streams batch snapshots over a websocket until the batch
// finishes or the client goes away.
func (h *Handlers) batchEvents(origins []string) http.HandlerFunc {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(origins),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ch, cancel, err := h.Uploads.Subscribe(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer cancel()

		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already answered the client.
			log.Debug().Err(err).Str("batch", id).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		// reader: handles pongs and notices the client leaving
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(wsPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPongWait * 9 / 10)
		defer ping.Stop()
		for {
			select {
			case snap, ok := <-ch:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"))
					return
				}
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	}
}

// originChecker accepts same-host requests, requests without an Origin and
// the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
