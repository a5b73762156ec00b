package recording

import (
	"github.com/alexedwards/flow"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/server"
)

// AddHandlers makes h answer every method and path on e.
func (h *HTTPHandler) AddHandlers(e *flow.Mux) {
	handler := server.Handle(server.Endpoint{
		Name:        Endpoint,
		LogNotFound: true,
		Observer:    h.obs,
		Logger:      h.l,
	}, h.record)

	e.NotFound = handler
	e.MethodNotAllowed = handler
}
