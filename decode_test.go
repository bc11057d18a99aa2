package xrelay

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	in := Event{
		Payload: Payload{Origin: "billing", Data: []byte{0x00, 0xff, 'h', 'i'}},
		Recipients: []Address{
			{DataCenter: "eu-1", Node: "a"},
			{DataCenter: "us-2", Node: "b"},
		},
	}
	for _, c := range []Codec{nil, JSONCodec{}, MsgpackCodec{}} {
		b, err := EncodeEvent(c, in)
		require.NoError(t, err)
		out, err := DecodeEvent(c, b)
		require.NoError(t, err)
		if diff := cmp.Diff(in, out); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := DecodeEvent(JSONCodec{}, nil)
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = DecodeEvent(JSONCodec{}, []byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.Contains(t, err.Error(), "json")

	_, err = DecodeEvent(MsgpackCodec{}, []byte{0xc1})
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestRecipientsRoundTrip(t *testing.T) {
	b, err := EncodeRecipients(MsgpackCodec{}, nil)
	require.NoError(t, err)
	got, err := DecodeRecipients(MsgpackCodec{}, b)
	require.NoError(t, err)
	assert.Empty(t, got)

	addrs := []Address{{DataCenter: "x", Node: "1"}}
	b, err = EncodeRecipients(nil, addrs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"dc":"x","node":"1"}]`, string(b))
	got, err = DecodeRecipients(nil, b)
	require.NoError(t, err)
	assert.Equal(t, addrs, got)

	got, err = DecodeRecipients(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = DecodeRecipients(nil, []byte("[{"))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
