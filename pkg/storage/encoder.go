package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"
	"google.golang.org/protobuf/encoding/protowire"
)

type Encoder interface {
	Encode(Interaction) ([]byte, error)
	Decode(src []byte) (Interaction, error)
}

// ProtoEncoder writes interactions in protobuf wire format:
//
//	message Interaction {
//	  bool is_http_interaction = 1;
//	  bool is_dns_interaction = 2;
//	  google.protobuf.Timestamp record_time = 3;
//	}
type ProtoEncoder struct{}

const (
	fieldIsHTTP     protowire.Number = 1
	fieldIsDNS      protowire.Number = 2
	fieldRecordTime protowire.Number = 3

	fieldSeconds protowire.Number = 1
	fieldNanos   protowire.Number = 2
)

var errNoKind = errors.New("interaction is neither http nor dns")

func (ProtoEncoder) Encode(i Interaction) ([]byte, error) {
	if i.IsHTTP == i.IsDNS {
		return nil, fmt.Errorf("encoder: %w", errNoKind)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	b := buf.B[:0]
	if i.IsHTTP {
		b = protowire.AppendTag(b, fieldIsHTTP, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if i.IsDNS {
		b = protowire.AppendTag(b, fieldIsDNS, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}

	var ts [24]byte
	b = protowire.AppendTag(b, fieldRecordTime, protowire.BytesType)
	b = protowire.AppendBytes(b, appendTimestamp(ts[:0], i.RecordTime))
	buf.B = b

	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (ProtoEncoder) Decode(src []byte) (Interaction, error) {
	var i Interaction
	for len(src) > 0 {
		num, typ, n := protowire.ConsumeTag(src)
		if n < 0 {
			return Interaction{}, fmt.Errorf("encoder: %w", protowire.ParseError(n))
		}
		src = src[n:]

		switch {
		case num == fieldIsHTTP && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(src)
			i.IsHTTP = protowire.DecodeBool(v)
		case num == fieldIsDNS && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(src)
			i.IsDNS = protowire.DecodeBool(v)
		case num == fieldRecordTime && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(src)
			if n >= 0 {
				t, err := consumeTimestamp(v)
				if err != nil {
					return Interaction{}, err
				}
				i.RecordTime = t
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, src)
		}
		if n < 0 {
			return Interaction{}, fmt.Errorf("encoder: field %d: %w", num, protowire.ParseError(n))
		}
		src = src[n:]
	}

	if i.IsHTTP == i.IsDNS {
		return Interaction{}, fmt.Errorf("encoder: %w", errNoKind)
	}
	return i, nil
}

func appendTimestamp(b []byte, t time.Time) []byte {
	if s := t.Unix(); s != 0 {
		b = protowire.AppendTag(b, fieldSeconds, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s))
	}
	if ns := t.Nanosecond(); ns != 0 {
		b = protowire.AppendTag(b, fieldNanos, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(ns)))
	}
	return b
}

func consumeTimestamp(b []byte) (time.Time, error) {
	var secs int64
	var nanos int32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return time.Time{}, fmt.Errorf("encoder: timestamp: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSeconds && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			secs = int64(v)
		case num == fieldNanos && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			nanos = int32(v)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return time.Time{}, fmt.Errorf("encoder: timestamp field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return time.Unix(secs, int64(nanos)).UTC(), nil
}
