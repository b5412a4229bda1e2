// Package storagetest holds the behavioural specs every storage.Driver must pass.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// Conversation builds a conversation fixture created offset after a fixed epoch.
func Conversation(id, owner string, offset time.Duration) *llm.Conversation {
	return &llm.Conversation{
		ID:        id,
		Title:     "title " + id,
		ModelID:   "test-model",
		OwnerID:   owner,
		CreatedAt: epoch.Add(offset),
	}
}

// Record builds a turn record fixture created offset after a fixed epoch.
func Record(id, role, content string, offset time.Duration) llm.Record {
	return llm.Record{
		ID:        id,
		Role:      role,
		Content:   content,
		ModelID:   "test-model",
		CreatedAt: epoch.Add(offset),
	}
}

// DescribeDriver registers the driver contract tests. newDriver is called
// before each test.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver contract", func() {
		var (
			driver storage.Driver
			ctx    context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				driver.Close()
			}
		})

		Describe("Create and Fetch", func() {
			It("stores a conversation with its first turn", func() {
				conv := Conversation("c1", "alice", 0)
				Expect(driver.Create(ctx, conv, Record("t1", "user", `[{"type":"text","text":"hi"}]`, 0))).To(Succeed())

				fetched, err := driver.Fetch(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched.Title).To(Equal("title c1"))
				Expect(fetched.OwnerID).To(Equal("alice"))
				Expect(fetched.CreatedAt.Equal(conv.CreatedAt)).To(BeTrue())

				turns, err := driver.Turns(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(1))
				Expect(turns[0].ConversationID).To(Equal("c1"))
				Expect(turns[0].Content).To(Equal(`[{"type":"text","text":"hi"}]`))
			})

			It("returns ErrNotFound for an unknown id", func() {
				_, err := driver.Fetch(ctx, "missing")
				Expect(storage.IsNotFound(err)).To(BeTrue())

				var nf storage.ErrNotFound
				Expect(err).To(BeAssignableToTypeOf(nf))
			})

			It("rejects nil conversations", func() {
				err := driver.Create(ctx, nil, llm.Record{})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("nil conversation"))
			})

			It("rejects duplicate conversation ids", func() {
				Expect(driver.Create(ctx, Conversation("c1", "alice", 0), Record("t1", "user", "a", 0))).To(Succeed())
				Expect(driver.Create(ctx, Conversation("c1", "alice", 0), Record("t2", "user", "b", 0))).NotTo(Succeed())
			})
		})

		Describe("List", func() {
			It("returns only the owner's conversations, newest first", func() {
				Expect(driver.Create(ctx, Conversation("old", "alice", 0), Record("t1", "user", "a", 0))).To(Succeed())
				Expect(driver.Create(ctx, Conversation("new", "alice", time.Hour), Record("t2", "user", "b", time.Hour))).To(Succeed())
				Expect(driver.Create(ctx, Conversation("other", "bob", 2*time.Hour), Record("t3", "user", "c", 0))).To(Succeed())

				convs, err := driver.List(ctx, "alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(convs).To(HaveLen(2))
				Expect(convs[0].ID).To(Equal("new"))
				Expect(convs[1].ID).To(Equal("old"))

				all, err := driver.ListAll(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(3))
				Expect(all[0].ID).To(Equal("other"))
			})

			It("returns an empty slice for an unknown owner", func() {
				convs, err := driver.List(ctx, "nobody")
				Expect(err).NotTo(HaveOccurred())
				Expect(convs).To(BeEmpty())
			})
		})

		Describe("AppendTurns", func() {
			BeforeEach(func() {
				Expect(driver.Create(ctx, Conversation("c1", "alice", 0), Record("t1", "user", "first", 0))).To(Succeed())
			})

			It("appends a batch in creation order", func() {
				err := driver.AppendTurns(ctx, "c1", []llm.Record{
					Record("t2", "user", "second", time.Second),
					Record("t3", "assistant", "third", 2*time.Second),
				})
				Expect(err).NotTo(HaveOccurred())

				turns, err := driver.Turns(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(3))
				Expect(turns[0].Content).To(Equal("first"))
				Expect(turns[1].Content).To(Equal("second"))
				Expect(turns[2].Content).To(Equal("third"))
				Expect(turns[2].Role).To(Equal("assistant"))
			})

			It("keeps insertion order for equal timestamps", func() {
				err := driver.AppendTurns(ctx, "c1", []llm.Record{
					Record("t2", "user", "a", time.Second),
					Record("t3", "assistant", "b", time.Second),
				})
				Expect(err).NotTo(HaveOccurred())

				turns, err := driver.Turns(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns[1].ID).To(Equal("t2"))
				Expect(turns[2].ID).To(Equal("t3"))
			})

			It("fails for an unknown conversation", func() {
				err := driver.AppendTurns(ctx, "missing", []llm.Record{Record("t9", "user", "x", 0)})
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})
		})

		Describe("Delete", func() {
			It("cascades the conversation's turns", func() {
				Expect(driver.Create(ctx, Conversation("c1", "alice", 0), Record("t1", "user", "first", 0))).To(Succeed())
				Expect(driver.AppendTurns(ctx, "c1", []llm.Record{Record("t2", "assistant", "reply", time.Second)})).To(Succeed())

				Expect(driver.Delete(ctx, "c1")).To(Succeed())

				_, err := driver.Fetch(ctx, "c1")
				Expect(storage.IsNotFound(err)).To(BeTrue())

				_, err = driver.Turns(ctx, "c1")
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("returns ErrNotFound for an unknown id", func() {
				Expect(storage.IsNotFound(driver.Delete(ctx, "missing"))).To(BeTrue())
			})
		})

		Describe("Import", func() {
			var importer storage.Importer

			BeforeEach(func() {
				var ok bool
				importer, ok = driver.(storage.Importer)
				if !ok {
					Skip(name + " does not import")
				}
			})

			It("adds missing conversations and records only", func() {
				conv := Conversation("c1", "alice", 0)
				Expect(driver.Create(ctx, conv, Record("t1", "user", "hi", 0))).To(Succeed())

				isNew, added, err := importer.Import(ctx, conv, []llm.Record{
					Record("t1", "user", "hi", 0),
					Record("t2", "assistant", "hello", time.Second),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeFalse())
				Expect(added).To(Equal(1))

				isNew, added, err = importer.Import(ctx, Conversation("c2", "bob", 0), []llm.Record{
					Record("t3", "user", "yo", 0),
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeTrue())
				Expect(added).To(Equal(1))

				turns, err := driver.Turns(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(2))

				fetched, err := driver.Fetch(ctx, "c2")
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched.OwnerID).To(Equal("bob"))
			})

			It("leaves another owner's conversation untouched", func() {
				Expect(driver.Create(ctx, Conversation("c1", "alice", 0), Record("t1", "user", "hi", 0))).To(Succeed())

				isNew, added, err := importer.Import(ctx, Conversation("c1", "mallory", 0), []llm.Record{
					Record("t2", "assistant", "injected", time.Second),
				})
				Expect(storage.IsOwnerMismatch(err)).To(BeTrue())
				Expect(isNew).To(BeFalse())
				Expect(added).To(BeZero())

				turns, err := driver.Turns(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(turns).To(HaveLen(1))

				fetched, err := driver.Fetch(ctx, "c1")
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched.OwnerID).To(Equal("alice"))
			})

			It("is idempotent", func() {
				conv := Conversation("c1", "alice", 0)
				records := []llm.Record{Record("t1", "user", "hi", 0)}

				_, _, err := importer.Import(ctx, conv, records)
				Expect(err).NotTo(HaveOccurred())

				isNew, added, err := importer.Import(ctx, conv, records)
				Expect(err).NotTo(HaveOccurred())
				Expect(isNew).To(BeFalse())
				Expect(added).To(BeZero())
			})
		})
	})
}
