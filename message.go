package xrelay

// Payload is the data delivered to every recipient of an Event.
// It is treated as immutable: sinks that keep Data beyond Send must Clone it.
type Payload struct {
	// Origin identifies the producer of the data.
	Origin string `json:"origin" msgpack:"origin"`
	// Data is the opaque body, delivered unchanged.
	Data []byte `json:"data" msgpack:"data"`
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	c := Payload{Origin: p.Origin}
	if p.Data != nil {
		c.Data = make([]byte, len(p.Data))
		copy(c.Data, p.Data)
	}
	return c
}

// IsZero reports whether p carries neither an origin nor data.
func (p Payload) IsZero() bool {
	return p.Origin == "" && p.Data == nil
}

// Address identifies a delivery target. Equality is by value.
type Address struct {
	DataCenter string `json:"dc" msgpack:"dc"`
	Node       string `json:"node" msgpack:"node"`
}

func (a Address) String() string { return a.DataCenter + "/" + a.Node }
