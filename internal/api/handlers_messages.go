package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shohag/msgboard/internal/models"
	"github.com/shohag/msgboard/internal/storage"
)

type MessageHandler struct {
	store        storage.Store
	maxBodyBytes int64
	now          func() time.Time
}

func NewMessageHandler(store storage.Store, maxBodyBytes int64) *MessageHandler {
	return &MessageHandler{store: store, maxBodyBytes: maxBodyBytes, now: time.Now}
}

type listResponse struct {
	Data []json.RawMessage `json:"data"`
}

type itemResponse struct {
	Data json.RawMessage `json:"data"`
}

func noSuchItem(id string) *APIError {
	return NewAPIError(http.StatusBadRequest, fmt.Sprintf("no such item: %s", id))
}

// messageID returns the decoded {id} segment. chi matches on RawPath when
// one is set, so ids like "a/b" arrive still escaped; otherwise the
// segment comes from the already-decoded Path.
func messageID(r *http.Request) (string, *APIError) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id, nil
	}
	id, err := url.PathUnescape(id)
	if err != nil {
		return "", NewAPIError(http.StatusBadRequest, err.Error())
	}
	return id, nil
}

func syntaxMessage(err error) string {
	if err == nil {
		return "invalid JSON body"
	}
	return err.Error()
}

// List returns every message in store order. With ?after=ID only the
// messages following the last one whose id is ID are returned; an unknown
// cursor yields an empty list.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := storage.ListAfter(r.Context(), h.store, r.URL.Query().Get("after"))
	if err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Data: list})
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, apiErr := messageID(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	value, ok, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}
	if !ok {
		writeError(w, noSuchItem(id))
		return
	}
	writeRaw(w, http.StatusOK, []byte(value))
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		writeError(w, NewAPIError(0, "missing JSON body"))
		return
	}
	if !json.Valid(body) {
		var m models.Message
		err := json.Unmarshal(body, &m)
		writeError(w, NewAPIError(http.StatusBadRequest, syntaxMessage(err)))
		return
	}

	msg, err := models.MessageFromJSON(body)
	if err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}
	msg.Stamp(h.now())

	value, err := json.Marshal(msg)
	if err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}
	if err := h.store.SetItem(r.Context(), msg.ID(), string(value)); err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{Data: value})
}

// Delete responds with the value read before removal.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, apiErr := messageID(r)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	value, ok, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}
	if !ok {
		writeError(w, noSuchItem(id))
		return
	}

	if err := h.store.RemoveItem(r.Context(), id); err != nil {
		writeError(w, NewAPIError(http.StatusBadRequest, err.Error()))
		return
	}
	writeRaw(w, http.StatusOK, []byte(value))
}
