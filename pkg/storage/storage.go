package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"
)

type (
	Kind uint8

	// Interaction is one recorded DNS lookup or HTTP request. Records are
	// never updated after they are created.
	Interaction struct {
		IsHTTP     bool
		IsDNS      bool
		RecordTime time.Time
	}

	// Store keeps an append-only interaction log per callback id.
	// Get returns an empty slice for unknown or expired ids.
	Store interface {
		Add(ctx context.Context, cbid string, kind Kind) error
		Get(ctx context.Context, cbid string) ([]Interaction, error)
		Delete(ctx context.Context, cbid string) error
	}

	// Options selects the storage backend. Exactly one of the fields must be
	// set.
	Options struct {
		Memory *MemoryConfig
		Valkey *ValkeyConfig
	}

	MemoryConfig struct {
		InteractionTTL  time.Duration
		CleanupInterval time.Duration
	}

	ValkeyConfig struct {
		InteractionTTL time.Duration
		ReadAddress    string
		WriteAddress   string
	}
)

const (
	KindHTTP Kind = iota + 1
	KindDNS
)

var ErrBackendSelection = errors.New("storage: exactly one backend must be configured")

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindDNS:
		return "dns"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func newInteraction(kind Kind, now time.Time) (Interaction, error) {
	switch kind {
	case KindHTTP:
		return Interaction{IsHTTP: true, RecordTime: now.UTC()}, nil
	case KindDNS:
		return Interaction{IsDNS: true, RecordTime: now.UTC()}, nil
	default:
		return Interaction{}, fmt.Errorf("storage: unknown interaction kind %s", kind)
	}
}

// New builds the configured backend. The returned function releases the
// backend's resources and must be called once the store is no longer used.
func New(opts Options, clock clockwork.Clock) (Store, func() error, error) {
	if (opts.Memory == nil) == (opts.Valkey == nil) {
		return nil, nil, ErrBackendSelection
	}

	if opts.Memory != nil {
		s, err := NewMemory(*opts.Memory, clock)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	cfg := opts.Valkey
	write, err := newValkeyClient(cfg.WriteAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: failed to connect to write endpoint %s: %w", cfg.WriteAddress, err)
	}
	read, err := newValkeyClient(cfg.ReadAddress)
	if err != nil {
		write.Close()
		return nil, nil, fmt.Errorf("storage: failed to connect to read endpoint %s: %w", cfg.ReadAddress, err)
	}
	s, err := NewValkey(read, write, cfg.InteractionTTL, clock)
	if err != nil {
		read.Close()
		write.Close()
		return nil, nil, err
	}
	return s, func() error {
		read.Close()
		write.Close()
		return nil
	}, nil
}

// Interaction logs change on every write, so client side caching is off.
func newValkeyClient(addr string) (valkey.Client, error) {
	return valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
}
