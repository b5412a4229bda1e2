package trigger_test

import (
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/trigger"
)

var _ = Describe("Registry", func() {
	var registry *trigger.Registry

	BeforeEach(func() {
		registry = trigger.NewRegistry()
	})

	It("starts with nothing triggered", func() {
		Expect(registry.Triggered("a")).To(BeFalse())
	})

	It("marks a conversation exactly once", func() {
		Expect(registry.MarkTriggered("a")).To(BeTrue())
		Expect(registry.MarkTriggered("a")).To(BeFalse())
		Expect(registry.Triggered("a")).To(BeTrue())
		Expect(registry.Triggered("b")).To(BeFalse())
	})

	It("lets exactly one of many concurrent callers win", func() {
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for range 64 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if registry.MarkTriggered("a") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		Expect(wins.Load()).To(Equal(int32(1)))
	})

	It("forgets marks and refuses new ones after Close", func() {
		registry.MarkTriggered("a")
		registry.Close()

		Expect(registry.Triggered("a")).To(BeFalse())
		Expect(registry.MarkTriggered("b")).To(BeFalse())
	})
})

var _ = Describe("URLIntent", func() {
	It("detects the autoTrigger parameter", func() {
		intent, err := trigger.ParseURLIntent(trigger.ChatTarget("abc", true))
		Expect(err).NotTo(HaveOccurred())
		Expect(intent.Present()).To(BeTrue())
		Expect(intent.String()).To(Equal("/chat/abc?autoTrigger=true"))
	})

	It("is absent on a bare target", func() {
		intent, err := trigger.ParseURLIntent(trigger.ChatTarget("abc", false))
		Expect(err).NotTo(HaveOccurred())
		Expect(intent.Present()).To(BeFalse())
	})

	It("ignores values other than true", func() {
		intent, err := trigger.ParseURLIntent("/chat/abc?autoTrigger=1")
		Expect(err).NotTo(HaveOccurred())
		Expect(intent.Present()).To(BeFalse())
	})

	It("clears down to the bare path", func() {
		intent, err := trigger.ParseURLIntent("/chat/abc?autoTrigger=true")
		Expect(err).NotTo(HaveOccurred())

		intent.Clear()
		Expect(intent.Present()).To(BeFalse())
		Expect(intent.String()).To(Equal("/chat/abc"))
	})

	It("keeps unrelated parameters when clearing", func() {
		intent, err := trigger.ParseURLIntent("/chat/abc?autoTrigger=true&tab=raw")
		Expect(err).NotTo(HaveOccurred())

		intent.Clear()
		Expect(intent.String()).To(Equal("/chat/abc?tab=raw"))
	})

	It("rejects a malformed target", func() {
		_, err := trigger.ParseURLIntent("%zz")
		Expect(err).To(HaveOccurred())
	})
})
