package recording

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/tsunami-security-scanner-callback-server/internal/monitoring"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/cbid"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/server"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
)

const Endpoint = "RECORDING"

// HTTPHandler records every request that carries a callback id in its path
// or host. Requests without one are answered the same way.
type HTTPHandler struct {
	l     *slog.Logger
	store storage.Store
	obs   monitoring.Observer
}

func NewHTTPHandler(store storage.Store, obs monitoring.Observer, l *slog.Logger) *HTTPHandler {
	return &HTTPHandler{l: l, store: store, obs: obs}
}

func (h *HTTPHandler) record(r *http.Request) (StatusResponse, error) {
	if r.Host == "" {
		return StatusResponse{}, fmt.Errorf("%w: request without Host header", server.ErrBadRequest)
	}

	id, ok := cbid.FromPath(r.URL.Path)
	if !ok {
		id, ok = cbid.FromHost(r.Host)
	}
	if ok {
		h.l.Info("recording http interaction", "cbid", id, "client_ip", server.ClientIP(r))
		if err := h.store.Add(r.Context(), id, storage.KindHTTP); err != nil {
			return StatusResponse{}, err
		}
		h.obs.InteractionRecorded(storage.KindHTTP)
	}
	return StatusResponse{Status: "OK"}, nil
}
