package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage/sqlite"
	"github.com/papercomputeco/parley/pkg/storage/storagetest"
)

var _ = Describe("SQLite Driver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewDriver", func() {
		It("creates the database file and its directory", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "nested", "parley.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Path()).To(Equal(dbPath))
		})

		It("keeps data across reopen", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "parley.db")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Create(ctx, storagetest.Conversation("c1", "alice", 0), storagetest.Record("t1", "user", "hi", 0))).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			turns, err := d.Turns(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
		})
	})

	Describe("AppendTurns", func() {
		It("stores nothing when one record of the batch fails", func() {
			d, err := sqlite.NewDriver(ctx, ":memory:")
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			Expect(d.Create(ctx, storagetest.Conversation("c1", "alice", 0), storagetest.Record("t1", "user", "hi", 0))).To(Succeed())

			// t1 already exists, so the second insert violates the unique id.
			err = d.AppendTurns(ctx, "c1", []llm.Record{
				storagetest.Record("t2", "user", "new", time.Second),
				storagetest.Record("t1", "assistant", "dupe", 2*time.Second),
			})
			Expect(err).To(HaveOccurred())

			turns, err := d.Turns(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
		})
	})
})
