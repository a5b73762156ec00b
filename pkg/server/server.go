package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/alexedwards/flow"
)

type Middleware = func(http.Handler) http.Handler

// Server serves a flow mux. Middleware added with Use wraps the whole mux,
// so it also runs for the mux's NotFound and MethodNotAllowed handlers.
type Server struct {
	e   *flow.Mux
	mw  []Middleware
	srv *http.Server
}

func New(e *flow.Mux) *Server {
	return &Server{e: e, srv: &http.Server{ReadHeaderTimeout: 10 * time.Second}}
}

func (s *Server) E() *flow.Mux { return s.e }

func (s *Server) Use(mw ...Middleware) { s.mw = append(s.mw, mw...) }

// Handler returns the mux wrapped in the registered middleware, first
// registered outermost.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.e
	for i := len(s.mw) - 1; i >= 0; i-- {
		h = s.mw[i](h)
	}
	return h
}

func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve returns nil once the server has been shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.srv.Handler = s.Handler()
	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
