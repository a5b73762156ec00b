package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestProtoEncoder(t *testing.T) {
	encoder := ProtoEncoder{}
	recordTime := time.Date(2020, 1, 1, 0, 0, 0, 123000000, time.UTC)

	for _, in := range []Interaction{
		{IsHTTP: true, RecordTime: recordTime},
		{IsDNS: true, RecordTime: recordTime},
		{IsDNS: true, RecordTime: time.Unix(0, 0).UTC()},
	} {
		encoded, err := encoder.Encode(in)
		require.NoError(t, err)
		assert.NotEmpty(t, encoded)

		decoded, err := encoder.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, decoded)
	}
}

func TestProtoEncoder_WireLayout(t *testing.T) {
	encoded, err := ProtoEncoder{}.Encode(Interaction{IsHTTP: true, RecordTime: time.Unix(1, 2)})
	require.NoError(t, err)

	// is_http_interaction=true, record_time{seconds:1 nanos:2}
	assert.Equal(t, []byte{0x08, 0x01, 0x1a, 0x04, 0x08, 0x01, 0x10, 0x02}, encoded)
}

func TestProtoEncoder_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("extra"))
	b = protowire.AppendTag(b, fieldIsDNS, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	decoded, err := ProtoEncoder{}.Decode(b)
	require.NoError(t, err)
	assert.True(t, decoded.IsDNS)
	assert.False(t, decoded.IsHTTP)
}

func TestProtoEncoder_Errors(t *testing.T) {
	_, err := ProtoEncoder{}.Encode(Interaction{})
	assert.Error(t, err)
	_, err = ProtoEncoder{}.Encode(Interaction{IsHTTP: true, IsDNS: true})
	assert.Error(t, err)

	_, err = ProtoEncoder{}.Decode([]byte{0xff})
	assert.Error(t, err)
	_, err = ProtoEncoder{}.Decode([]byte{0x1a, 0x10, 0x08})
	assert.Error(t, err)
	_, err = ProtoEncoder{}.Decode(nil)
	assert.Error(t, err, "a record without a kind is invalid")
}
