package client_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/api"
	"github.com/papercomputeco/parley/pkg/backend/echo"
	"github.com/papercomputeco/parley/pkg/chat"
	"github.com/papercomputeco/parley/pkg/client"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage/inmemory"
)

// startServer runs an api.Server on a random local port.
func startServer() (string, *chat.Service, func()) {
	store := inmemory.NewDriver()
	svc := chat.NewService(store, echo.New(0), chat.Config{}, zap.NewNop())

	srv, err := api.NewServer(api.Config{
		ListenAddr: ":0",
		Models:     llm.ModelCatalog{Models: []string{"echo-1"}},
	}, svc, store, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	go func() {
		_ = srv.RunWithListener(listener)
	}()

	return "http://" + listener.Addr().String(), svc, func() { _ = srv.Shutdown() }
}

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		addr    string
		svc     *chat.Service
		cleanup func()
		alice   *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		addr, svc, cleanup = startServer()
		alice = client.New(addr, "alice", nil)
	})

	AfterEach(func() {
		cleanup()
	})

	It("reads the model catalog", func() {
		catalog, err := alice.Models(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(catalog.Models).To(Equal([]string{"echo-1"}))
	})

	It("creates, lists, fetches and deletes conversations", func() {
		conv, err := alice.CreateConversation(ctx, "hello there", "echo-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Title).To(Equal("hello there"))

		convs, err := alice.Conversations(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(convs).To(HaveLen(1))
		Expect(convs[0].ID).To(Equal(conv.ID))

		detail, err := alice.Conversation(ctx, conv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Turns).To(HaveLen(1))

		Expect(alice.DeleteConversation(ctx, conv.ID)).To(Succeed())
		_, err = alice.Conversation(ctx, conv.ID)
		Expect(client.IsNotFound(err)).To(BeTrue())
	})

	It("reports API errors with their message", func() {
		_, err := alice.CreateConversation(ctx, "", "echo-1")
		var se *client.StatusError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.StatusCode).To(Equal(400))
		Expect(se.Message).To(Equal("content is required"))

		anonymous := client.New(addr, "", nil)
		_, err = anonymous.Conversations(ctx)
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.StatusCode).To(Equal(401))
	})

	It("streams events until done", func() {
		conv, err := alice.CreateConversation(ctx, "stream these words", "echo-1")
		Expect(err).NotTo(HaveOccurred())

		stream, err := alice.Stream(ctx, llm.Invocation{
			ConversationID:        conv.ID,
			ModelID:               "echo-1",
			SkipPersistingNewTurn: true,
		})
		Expect(err).NotTo(HaveOccurred())
		defer stream.Close()
		Expect(stream.ID()).NotTo(BeEmpty())

		var text strings.Builder
		var last llm.Event
		for {
			ev, err := stream.Recv()
			if err == io.EOF {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			if ev.Type == llm.EventTextDelta {
				text.WriteString(ev.Payload)
			}
			last = ev
		}
		Expect(last.Type).To(Equal(llm.EventDone))
		Expect(text.String()).To(Equal("stream these words"))

		svc.Wait()
		detail, err := alice.Conversation(ctx, conv.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Turns).To(HaveLen(2))
	})

	It("fails to open a stream for a conversation it does not own", func() {
		conv, err := alice.CreateConversation(ctx, "mine", "echo-1")
		Expect(err).NotTo(HaveOccurred())

		bob := client.New(addr, "bob", nil)
		_, err = bob.Stream(ctx, llm.Invocation{ConversationID: conv.ID, ModelID: "echo-1"})
		Expect(client.IsNotFound(err)).To(BeTrue())
	})

	It("pushes exports", func() {
		result, err := alice.Import(ctx, []llm.ConversationExport{{
			Conversation: &llm.Conversation{ID: "c1", Title: "t", OwnerID: "alice"},
			Records:      []llm.Record{{ID: "r1", Role: "user", Content: `[{"type":"text","text":"hi"}]`}},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.New).To(Equal(1))

		detail, err := alice.Conversation(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(detail.Turns[0].Parts.Text()).To(Equal("hi"))
	})
})
