package testutil

import (
	"os"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
)

// NewNatsServer starts an embedded JetStream-enabled server; port -1 picks a free one.
func NewNatsServer(port int) *server.Server {
	opts := natsserver.DefaultTestOptions
	opts.Port = port
	opts.JetStream = true
	return natsserver.RunServer(&opts)
}

func ShutdownNatsServer(s *server.Server) {
	var sd string
	if config := s.JetStreamConfig(); config != nil {
		sd = config.StoreDir
	}
	s.Shutdown()
	if sd != "" {
		os.RemoveAll(sd)
	}
	s.WaitForShutdown()
}

// NatsConn starts a server and returns a connection to it; both are torn down with t.
func NatsConn(t testing.TB) *nats.Conn {
	t.Helper()
	srv := NewNatsServer(-1)
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		ShutdownNatsServer(srv)
		t.Fatalf("connect to embedded nats: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		ShutdownNatsServer(srv)
	})
	return nc
}
