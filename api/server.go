// Package api serves the parley chat pipeline over HTTP.
package api

import (
	"errors"
	"net"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/chat"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage"
)

// OwnerHeader identifies the calling user.
const OwnerHeader = "X-Owner-ID"

const ownerKey = "owner"

// Server is the HTTP front of the chat service.
type Server struct {
	config   Config
	chat     *chat.Service
	importer storage.Importer
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a Server. importer may be nil, in which case pushes to
// this server are refused.
func NewServer(config Config, svc *chat.Service, importer storage.Importer, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("api server needs a chat service")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		config:   config,
		chat:     svc,
		importer: importer,
		logger:   logger,
		app:      app,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/models", s.handleModels)
	api.Post("/import", requireOwner, s.handleImport)
	api.Post("/chat", requireOwner, s.handleChat)

	convs := api.Group("/conversations", requireOwner)
	convs.Post("/", s.handleCreateConversation)
	convs.Get("/", s.handleListConversations)
	convs.Get("/:id", s.handleGetConversation)
	convs.Delete("/:id", s.handleDeleteConversation)

	return s, nil
}

// Run starts the server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting api server", zap.String("listen", s.config.ListenAddr))
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting api server", zap.String("listen", ln.Addr().String()))
	return s.app.Listener(ln)
}

// Shutdown stops accepting requests and waits for in-flight ones, then for
// pending conversation writes.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.chat.Wait()
	return err
}

func requireOwner(c *fiber.Ctx) error {
	owner := c.Get(OwnerHeader)
	if owner == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "missing " + OwnerHeader + " header"})
	}
	c.Locals(ownerKey, owner)
	return c.Next()
}

func owner(c *fiber.Ctx) string {
	id, _ := c.Locals(ownerKey).(string)
	return id
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}
