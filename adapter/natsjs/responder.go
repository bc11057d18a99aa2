package natsjs

import (
	"github.com/nats-io/nats.go"

	"github.com/trickstertwo/xrelay"
)

// Handler decides whether a recipient takes a payload.
type Handler func(p xrelay.Payload) xrelay.SendResult

// Serve answers Sink requests addressed to addr on prefix with h's verdict.
// Unsubscribe the returned subscription to stop.
func Serve(nc *nats.Conn, prefix string, addr xrelay.Address, h Handler) (*nats.Subscription, error) {
	return nc.Subscribe(subjectFor(prefix, addr), func(m *nats.Msg) {
		p := xrelay.Payload{Data: m.Data}
		if m.Header != nil {
			p.Origin = m.Header.Get(headerOrigin)
		}

		reply := replyRejected
		if h(p) == xrelay.Accepted {
			reply = replyAccepted
		}
		_ = m.Respond([]byte(reply))
	})
}
