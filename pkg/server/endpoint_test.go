package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type served struct {
	endpoint string
	status   int
}

type fakeObserver struct {
	http []served
	dns  []served
}

func (o *fakeObserver) HTTPRequestServed(endpoint string, status int, _ time.Duration) {
	o.http = append(o.http, served{endpoint, status})
}

func (o *fakeObserver) DNSRequestServed(endpoint string, rcode int, _ time.Duration) {
	o.dns = append(o.dns, served{endpoint, rcode})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testResponse struct {
	Status string `json:"status"`
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantType    string
		wantBody    string
		jsonPayload bool
	}{
		{"success", nil, http.StatusOK, "application/json", `{"status":"OK"}`, true},
		{"bad request", fmt.Errorf("%w: missing", ErrBadRequest), http.StatusBadRequest, "text/plain; charset=utf-8", "Bad Request.", false},
		{"not found", fmt.Errorf("%w: nothing", ErrNotFound), http.StatusNotFound, "text/plain; charset=utf-8", "Not Found.", false},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "text/plain; charset=utf-8", "Server Error.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &fakeObserver{}
			h := Handle(Endpoint{Name: "TEST", Observer: obs, Logger: discardLogger()},
				func(*http.Request) (testResponse, error) {
					return testResponse{Status: "OK"}, tt.err
				})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
			if tt.jsonPayload {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			require.Len(t, obs.http, 1)
			assert.Equal(t, served{"TEST", tt.wantStatus}, obs.http[0])
		})
	}
}

func TestHandle_UnencodableResult(t *testing.T) {
	h := Handle(Endpoint{Name: "TEST", Logger: discardLogger()},
		func(*http.Request) (chan int, error) { return make(chan int), nil })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", ClientIP(r))

	r.RemoteAddr = "[::1]:80"
	assert.Equal(t, "::1", ClientIP(r))

	r.RemoteAddr = "garbage"
	assert.Equal(t, "garbage", ClientIP(r))
}

func TestHandle_Panic(t *testing.T) {
	obs := &fakeObserver{}
	h := Handle(Endpoint{Name: "TEST", Observer: obs, Logger: discardLogger()},
		func(*http.Request) (testResponse, error) { panic("corrupt record") })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []served{{"TEST", http.StatusInternalServerError}}, obs.http)
}
