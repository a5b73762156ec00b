package polling

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/tsunami-security-scanner-callback-server/internal/monitoring"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/cbid"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/server"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
)

const Endpoint = "POLLING"

type handlers struct {
	l     *slog.Logger
	store storage.Store
	obs   monitoring.Observer
}

func NewHandlers(store storage.Store, obs monitoring.Observer, l *slog.Logger) *handlers {
	return &handlers{l: l, store: store, obs: obs}
}

func (h *handlers) poll(r *http.Request) (PollingResult, error) {
	secret, ok := server.QueryParam(r.URL.RawQuery, "secret")
	if !ok {
		return PollingResult{}, fmt.Errorf("%w: required parameter 'secret' not found", server.ErrBadRequest)
	}

	id := cbid.Derive(secret)
	interactions, err := h.store.Get(r.Context(), id)
	if err != nil {
		return PollingResult{}, err
	}
	if len(interactions) == 0 {
		h.obs.InteractionNotFound()
		return PollingResult{}, fmt.Errorf("%w: no interaction recorded for cbid %s", server.ErrNotFound, id)
	}

	var res PollingResult
	for _, i := range interactions {
		res.HasDNSInteraction = res.HasDNSInteraction || i.IsDNS
		res.HasHTTPInteraction = res.HasHTTPInteraction || i.IsHTTP
	}
	if res.HasDNSInteraction {
		h.obs.InteractionFound(storage.KindDNS)
	}
	if res.HasHTTPInteraction {
		h.obs.InteractionFound(storage.KindHTTP)
	}
	return res, nil
}
