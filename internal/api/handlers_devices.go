package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shohag/msgboard/internal/edge"
)

type NodeLister interface {
	ListNodes(ctx context.Context) (json.RawMessage, error)
}

type NodeDecrypter interface {
	DecryptNodes(ctx context.Context, req edge.DecryptRequest) ([]byte, error)
}

type DeviceHandler struct {
	nodes        NodeLister
	decrypter    NodeDecrypter
	legacyErrors bool
	log          zerolog.Logger
}

func NewDeviceHandler(nodes NodeLister, decrypter NodeDecrypter, legacyErrors bool, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		nodes:        nodes,
		decrypter:    decrypter,
		legacyErrors: legacyErrors,
		log:          log,
	}
}

// List fetches link-local nodes from mDS and decrypts them with the
// caller's token.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r.Header.Get("Authorization"))

	data, err := h.nodes.ListNodes(r.Context())
	if err != nil {
		h.fail(w, "list nodes", err)
		return
	}

	result, err := h.decrypter.DecryptNodes(r.Context(), edge.DecryptRequest{
		Type:  edge.TypeLocal,
		Data:  data,
		Token: token,
	})
	if err != nil {
		h.fail(w, "decrypt nodes", err)
		return
	}

	writeRaw(w, http.StatusOK, result)
}

func (h *DeviceHandler) fail(w http.ResponseWriter, step string, err error) {
	h.log.Warn().Err(err).Str("step", step).Msg("devices request failed")

	if h.legacyErrors {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(err.Error()))
		return
	}

	code := http.StatusBadGateway
	if errors.Is(err, edge.ErrMissingToken) {
		code = http.StatusUnauthorized
	}
	writeError(w, NewAPIError(code, err.Error()))
}
