package natsjs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/trickstertwo/xrelay"
)

const (
	headerOrigin = "Xrelay-Origin"

	replyAccepted = "+ACK"
	replyRejected = "-NAK"
)

// Sink delivers payloads as requests to Prefix.<dc>.<node> and maps the
// reply to a SendResult. No responders on the subject means the recipient is
// not taking payloads, which is a rejection rather than a transport failure.
// Note that this is the one transport condition the Sink answers as Rejected
// instead of returning an error: a node that is down and a node that is
// deliberately not listening look the same, and both are backed off and
// skipped rather than stopping the dispatcher. Request timeouts and every
// other error are still returned.
type Sink struct {
	cfg   Config
	nc    *nats.Conn
	owned bool

	closed atomic.Bool
}

var _ xrelay.Sink = (*Sink)(nil)

func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nc, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	s := NewSinkWithConn(nc, cfg)
	s.owned = true
	return s, nil
}

func NewSinkWithConn(nc *nats.Conn, cfg Config) *Sink {
	return &Sink{cfg: cfg, nc: nc}
}

// Subject returns the subject a recipient listens on.
func (s *Sink) Subject(addr xrelay.Address) string {
	return subjectFor(s.cfg.Prefix, addr)
}

func (s *Sink) Send(ctx context.Context, addr xrelay.Address, p xrelay.Payload) (xrelay.SendResult, error) {
	if s.closed.Load() {
		return 0, nats.ErrConnectionClosed
	}

	msg := nats.NewMsg(s.Subject(addr))
	msg.Data = p.Data
	msg.Header.Set(headerOrigin, p.Origin)
	msg.Header.Set(nats.MsgIdHdr, nuid.Next())

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	reply, err := s.nc.RequestMsgWithContext(rctx, msg)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return xrelay.Rejected, nil
		}
		return 0, err
	}

	switch string(reply.Data) {
	case replyAccepted:
		return xrelay.Accepted, nil
	case replyRejected:
		return xrelay.Rejected, nil
	default:
		return 0, fmt.Errorf("natsjs: unexpected reply %q from %s", reply.Data, addr)
	}
}

func (s *Sink) Close() error {
	if s.closed.Swap(true) || !s.owned {
		return nil
	}
	s.nc.Close()
	return nil
}

func subjectFor(prefix string, addr xrelay.Address) string {
	return prefix + "." + addr.DataCenter + "." + addr.Node
}
