package pushcmder

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/remote/remotetest"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage/sqlite"
	"github.com/papercomputeco/parley/pkg/storage/storagetest"
)

var _ = Describe("Push Command", func() {
	var (
		ctx       context.Context
		localPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		localPath = filepath.Join(GinkgoT().TempDir(), "local.db")
	})

	run := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		cmd := NewPushCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("pushes the owner's local conversations to a remote server", func() {
		local, err := sqlite.NewDriver(ctx, localPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(local.Create(ctx, storagetest.Conversation("c1", "alice", 0),
			storagetest.Record("t1", "user", "hello from push test", 0))).To(Succeed())
		Expect(local.AppendTurns(ctx, "c1", []llm.Record{
			storagetest.Record("t2", "assistant", "hi back from push test", time.Second),
		})).To(Succeed())
		Expect(local.Create(ctx, storagetest.Conversation("c2", "alice", time.Minute),
			storagetest.Record("t3", "user", "second conversation", 0))).To(Succeed())
		Expect(local.Create(ctx, storagetest.Conversation("c3", "bob", 2*time.Minute),
			storagetest.Record("t4", "user", "bob's conversation", 0))).To(Succeed())
		local.Close()

		server := remotetest.Start()
		defer server.Stop()

		out, err := run("--owner", "alice", "--sqlite", localPath, "--batch-size", "1", server.Addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Pushed 2 new conversations and 3 new turns (0 already existed, 0 errors)"))

		turns, err := server.Store.Turns(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(2))

		_, err = server.Store.Fetch(ctx, "c3")
		Expect(err).To(HaveOccurred())

		out, err = run("--owner", "alice", "--sqlite", localPath, server.Addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("0 new turns (3 already existed"))
	})

	It("reports an empty local database", func() {
		server := remotetest.Start()
		defer server.Stop()

		out, err := run("--owner", "alice", "--sqlite", localPath, server.Addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No local conversations of alice to push."))
	})

	It("fails when the server is unreachable", func() {
		local, err := sqlite.NewDriver(ctx, localPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(local.Create(ctx, storagetest.Conversation("c1", "alice", 0),
			storagetest.Record("t1", "user", "hi", 0))).To(Succeed())
		local.Close()

		_, err = run("--owner", "alice", "--sqlite", localPath, "http://127.0.0.1:1")
		Expect(err).To(MatchError(ContainSubstring("push failed")))
	})
})
