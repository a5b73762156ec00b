package polling

import (
	"net/http"

	"github.com/alexedwards/flow"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/server"
)

func (h *handlers) AddHandlers(e *flow.Mux) {
	e.Handle("/...", server.Handle(server.Endpoint{
		Name:     Endpoint,
		Observer: h.obs,
		Logger:   h.l,
	}, h.poll), http.MethodGet)
}
