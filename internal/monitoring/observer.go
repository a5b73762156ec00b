package monitoring

import (
	"time"

	"github.com/google/tsunami-security-scanner-callback-server/pkg/server"
	"github.com/google/tsunami-security-scanner-callback-server/pkg/storage"
)

// Observer receives server events.
type Observer interface {
	server.HTTPObserver
	server.DNSObserver
	InteractionRecorded(kind storage.Kind)
	InteractionFound(kind storage.Kind)
	InteractionNotFound()
}

type NoOp struct{}

var _ Observer = NoOp{}

func (NoOp) HTTPRequestServed(string, int, time.Duration) {}
func (NoOp) DNSRequestServed(string, int, time.Duration)  {}
func (NoOp) InteractionRecorded(storage.Kind)             {}
func (NoOp) InteractionFound(storage.Kind)                {}
func (NoOp) InteractionNotFound()                         {}
