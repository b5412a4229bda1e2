package listcmder

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/remote/remotetest"
	"github.com/papercomputeco/parley/pkg/client"
)

var _ = Describe("List Command", func() {
	var (
		ctx    context.Context
		server *remotetest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = remotetest.Start()
	})

	AfterEach(func() {
		server.Stop()
	})

	run := func(owner string) string {
		out := &bytes.Buffer{}
		cmd := NewListCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--server", server.Addr, "--owner", owner})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		return out.String()
	}

	It("says when there is nothing to list", func() {
		Expect(run("alice")).To(ContainSubstring("No conversations yet"))
	})

	It("lists only the owner's conversations", func() {
		alice := client.New(server.Addr, "alice", nil)
		first, err := alice.CreateConversation(ctx, "planning the garden", "")
		Expect(err).NotTo(HaveOccurred())
		_, err = client.New(server.Addr, "bob", nil).CreateConversation(ctx, "bob's secret plans", "")
		Expect(err).NotTo(HaveOccurred())

		out := run("alice")
		Expect(out).To(ContainSubstring("ID"))
		Expect(out).To(ContainSubstring(first.ID))
		Expect(out).To(ContainSubstring("planning the garden"))
		Expect(out).To(ContainSubstring("echo-1"))
		Expect(out).NotTo(ContainSubstring("bob's secret plans"))
	})
})
