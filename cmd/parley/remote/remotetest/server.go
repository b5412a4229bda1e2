// Package remotetest runs a parley API server for command tests.
package remotetest

import (
	"net"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/api"
	"github.com/papercomputeco/parley/pkg/backend/echo"
	"github.com/papercomputeco/parley/pkg/chat"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage/inmemory"
)

// Models is the catalog served by Server.
var Models = []string{"echo-1", "echo-2"}

// Server is a running API server backed by the echo model and an in-memory
// store.
type Server struct {
	Addr  string
	Store *inmemory.Driver
	Chat  *chat.Service

	srv *api.Server
}

// Start runs a Server on a random local port.
func Start() *Server {
	store := inmemory.NewDriver()
	svc := chat.NewService(store, echo.New(0), chat.Config{}, zap.NewNop())

	srv, err := api.NewServer(api.Config{
		ListenAddr: ":0",
		Models:     llm.ModelCatalog{Models: Models},
	}, svc, store, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	go func() {
		_ = srv.RunWithListener(listener)
	}()

	return &Server{
		Addr:  "http://" + listener.Addr().String(),
		Store: store,
		Chat:  svc,
		srv:   srv,
	}
}

// Stop shuts the server down and waits for pending conversation writes.
func (s *Server) Stop() {
	_ = s.srv.Shutdown()
}
