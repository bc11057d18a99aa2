package xrelay

import "strconv"

// Event bundles one Payload with the ordered recipients it must reach.
type Event struct {
	Payload    Payload   `json:"payload" msgpack:"payload"`
	Recipients []Address `json:"recipients" msgpack:"recipients"`
}

// Deliverable reports whether e has a payload and at least one recipient.
func (e Event) Deliverable() bool {
	return !e.Payload.IsZero() && len(e.Recipients) > 0
}

// ReadOutcome is the result of a successful Source read: either Empty or an Event.
// The zero value is Empty.
type ReadOutcome struct {
	event Event
	ok    bool
}

// Empty is the outcome of a read that found nothing to deliver.
func Empty() ReadOutcome { return ReadOutcome{} }

// Got wraps an Event read from a Source.
func Got(e Event) ReadOutcome { return ReadOutcome{event: e, ok: true} }

// Event returns the event and true, or false when the outcome is Empty.
func (r ReadOutcome) Event() (Event, bool) { return r.event, r.ok }

// IsEmpty reports whether the read yielded no event.
func (r ReadOutcome) IsEmpty() bool { return !r.ok }

// SendResult is a recipient's answer to a Send. The zero value is invalid.
type SendResult uint8

const (
	Accepted SendResult = iota + 1
	Rejected
)

func (r SendResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "SendResult(" + strconv.Itoa(int(r)) + ")"
	}
}
