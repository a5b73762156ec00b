package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"
)

// appendScript pushes one record and seeds the key expiry on the first write
// only, so the whole log expires a fixed time after its first interaction.
const appendScript = `local n = redis.call('RPUSH', KEYS[1], ARGV[1])
if redis.call('TTL', KEYS[1]) < 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return n`

// ValkeyStore writes through one client and reads through another, so the
// reads can be served by a replica.
type ValkeyStore struct {
	read    valkey.Client
	write   valkey.Client
	ttl     string
	clock   clockwork.Clock
	encoder Encoder
	script  *valkey.Lua
}

var _ Store = (*ValkeyStore)(nil)

func NewValkey(read, write valkey.Client, ttl time.Duration, clock clockwork.Clock) (*ValkeyStore, error) {
	if ttl < time.Second {
		return nil, errors.New("storage: valkey interaction ttl must be at least one second")
	}
	return &ValkeyStore{
		read:    read,
		write:   write,
		ttl:     strconv.FormatInt(int64(ttl/time.Second), 10),
		clock:   clock,
		encoder: ProtoEncoder{},
		script:  valkey.NewLuaScript(appendScript),
	}, nil
}

func (s *ValkeyStore) Add(ctx context.Context, cbid string, kind Kind) error {
	interaction, err := newInteraction(kind, s.clock.Now())
	if err != nil {
		return err
	}
	buf, err := s.encoder.Encode(interaction)
	if err != nil {
		return fmt.Errorf("valkey: error encoding interaction: %w", err)
	}

	err = s.script.Exec(ctx, s.write, []string{cbid}, []string{valkey.BinaryString(buf), s.ttl}).Error()
	if err != nil {
		return fmt.Errorf("valkey: error storing interaction: %w", err)
	}
	return nil
}

// Get panics when a stored record cannot be decoded: only Add writes these
// keys, so a bad record means the store itself is broken.
func (s *ValkeyStore) Get(ctx context.Context, cbid string) ([]Interaction, error) {
	raw, err := s.read.Do(ctx, s.read.B().Lrange().Key(cbid).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return []Interaction{}, nil
		}
		return nil, fmt.Errorf("valkey: error getting interactions: %w", err)
	}

	out := make([]Interaction, 0, len(raw))
	for _, r := range raw {
		interaction, err := s.encoder.Decode([]byte(r))
		if err != nil {
			panic(fmt.Sprintf("valkey: stored interaction for %s cannot be decoded: %v", cbid, err))
		}
		out = append(out, interaction)
	}
	return out, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, cbid string) error {
	if err := s.write.Do(ctx, s.write.B().Del().Key(cbid).Build()).Error(); err != nil {
		return fmt.Errorf("valkey: error deleting interactions: %w", err)
	}
	return nil
}
