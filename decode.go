package xrelay

import "fmt"

// EncodeEvent serializes e with c.
func EncodeEvent(c Codec, e Event) ([]byte, error) {
	if c == nil {
		c = JSONCodec{}
	}
	return c.Marshal(e)
}

// DecodeEvent deserializes an Event written by EncodeEvent.
// Failures wrap ErrMalformedEvent.
func DecodeEvent(c Codec, b []byte) (Event, error) {
	if c == nil {
		c = JSONCodec{}
	}
	var e Event
	if len(b) == 0 {
		return e, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}
	if err := c.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, c.Name(), err)
	}
	return e, nil
}

// EncodeRecipients serializes an address list with c.
func EncodeRecipients(c Codec, addrs []Address) ([]byte, error) {
	if c == nil {
		c = JSONCodec{}
	}
	if addrs == nil {
		addrs = []Address{}
	}
	return c.Marshal(addrs)
}

// DecodeRecipients deserializes an address list written by EncodeRecipients.
func DecodeRecipients(c Codec, b []byte) ([]Address, error) {
	if c == nil {
		c = JSONCodec{}
	}
	var addrs []Address
	if len(b) == 0 {
		return addrs, nil
	}
	if err := c.Unmarshal(b, &addrs); err != nil {
		return nil, fmt.Errorf("%w: recipients: %v", ErrMalformedEvent, err)
	}
	return addrs, nil
}
