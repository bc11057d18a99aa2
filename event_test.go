package xrelay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload(t *testing.T) {
	p := Payload{Origin: "o", Data: []byte("abc")}
	c := p.Clone()
	c.Data[0] = 'X'
	assert.Equal(t, "abc", string(p.Data))
	assert.Nil(t, Payload{Origin: "o"}.Clone().Data)

	assert.True(t, Payload{}.IsZero())
	assert.False(t, Payload{Origin: "o"}.IsZero())
	assert.False(t, Payload{Data: []byte{}}.IsZero())
}

func TestAddress(t *testing.T) {
	a := Address{DataCenter: "dc", Node: "n"}
	assert.Equal(t, "dc/n", a.String())
	assert.True(t, a == Address{DataCenter: "dc", Node: "n"})
}

func TestEventDeliverable(t *testing.T) {
	to := []Address{{DataCenter: "dc", Node: "n"}}
	assert.True(t, Event{Payload: Payload{Origin: "o"}, Recipients: to}.Deliverable())
	assert.False(t, Event{Payload: Payload{Origin: "o"}}.Deliverable())
	assert.False(t, Event{Payload: Payload{Origin: "o"}, Recipients: []Address{}}.Deliverable())
	assert.False(t, Event{Recipients: to}.Deliverable())
}

func TestReadOutcome(t *testing.T) {
	var zero ReadOutcome
	assert.True(t, zero.IsEmpty())
	assert.True(t, Empty().IsEmpty())

	e := Event{Payload: Payload{Origin: "o"}}
	out := Got(e)
	assert.False(t, out.IsEmpty())
	got, ok := out.Event()
	assert.True(t, ok)
	assert.Equal(t, e, got)

	_, ok = Empty().Event()
	assert.False(t, ok)
}

func TestSendResultString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "SendResult(0)", SendResult(0).String())
	assert.Equal(t, "delivering", StateDelivering.String())
	assert.Equal(t, "unknown", State(9).String())
}
