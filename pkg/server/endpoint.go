package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/valyala/bytebufferpool"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

type HTTPObserver interface {
	HTTPRequestServed(endpoint string, status int, elapsed time.Duration)
}

// Endpoint describes one HTTP endpoint served through Handle.
type Endpoint struct {
	Name string
	// LogNotFound controls whether ErrNotFound outcomes are logged as errors.
	// When false they are logged at debug level.
	LogNotFound bool
	Observer    HTTPObserver
	Logger      *slog.Logger
}

// Handle turns core into a handler that replies with the JSON encoding of
// its result. Errors wrapping ErrBadRequest map to 400, ErrNotFound to 404
// and anything else, panics included, to 500.
func Handle[T any](e Endpoint, core func(r *http.Request) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := e.Logger.With("endpoint", e.Name, "client_ip", ClientIP(r))

		status := http.StatusOK
		res, err := call(core, r)
		switch {
		case err == nil:
			if err = writeJSON(w, res); err != nil {
				l.Error("failed to encode response", "error", err)
				status = http.StatusInternalServerError
				writeText(w, status, "Server Error.")
			}
		case errors.Is(err, ErrNotFound):
			if e.LogNotFound {
				l.Error("unable to handle http request", "error", err)
			} else {
				l.Debug("unable to handle http request", "error", err)
			}
			status = http.StatusNotFound
			writeText(w, status, "Not Found.")
		case errors.Is(err, ErrBadRequest):
			l.Error("unable to handle http request", "error", err)
			status = http.StatusBadRequest
			writeText(w, status, "Bad Request.")
		default:
			l.Error("unable to handle http request", "error", err)
			status = http.StatusInternalServerError
			writeText(w, status, "Server Error.")
		}

		if e.Observer != nil {
			e.Observer.HTTPRequestServed(e.Name, status, time.Since(start))
		}
	}
}

func call[T any](core func(r *http.Request) (T, error), r *http.Request) (res T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return core(r)
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.B)
	return nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
