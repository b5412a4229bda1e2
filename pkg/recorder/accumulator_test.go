package recorder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/recorder"
)

var _ = Describe("Accumulator", func() {
	var acc *recorder.Accumulator

	BeforeEach(func() {
		acc = recorder.NewAccumulator()
	})

	It("merges consecutive deltas of one kind", func() {
		acc.Add(llm.TextDelta("Hel"))
		acc.Add(llm.TextDelta("lo"))

		Expect(acc.Finalize()).To(Equal(llm.Parts{llm.TextPart{Text: "Hello"}}))
		Expect(acc.Deltas()).To(Equal(2))
	})

	It("starts a new part when the kind changes", func() {
		acc.Add(llm.ReasoningDelta("think "))
		acc.Add(llm.ReasoningDelta("hard"))
		acc.Add(llm.TextDelta("answer"))

		Expect(acc.Finalize()).To(Equal(llm.Parts{
			llm.ReasoningPart{Text: "think hard"},
			llm.TextPart{Text: "answer"},
		}))
	})

	It("closes the open part at a step boundary", func() {
		acc.Add(llm.TextDelta("one"))
		acc.Add(llm.StepBoundaryEvent())
		acc.Add(llm.TextDelta("two"))

		Expect(acc.Finalize()).To(Equal(llm.Parts{
			llm.TextPart{Text: "one"},
			llm.StepBoundary{},
			llm.TextPart{Text: "two"},
		}))
	})

	It("leaves the open part out of the finalized parts", func() {
		acc.Add(llm.TextDelta("a"))
		acc.Add(llm.TextDelta("b"))
		acc.Add(llm.TextDelta("c"))

		Expect(acc.Finalized()).To(BeEmpty())
		Expect(acc.Snapshot()).To(Equal(llm.Parts{llm.TextPart{Text: "abc"}}))
		Expect(acc.Deltas()).To(Equal(3))
	})

	It("keeps parts closed before a stop", func() {
		acc.Add(llm.ReasoningDelta("r"))
		acc.Add(llm.TextDelta("partial"))

		Expect(acc.Finalized()).To(Equal(llm.Parts{llm.ReasoningPart{Text: "r"}}))
	})

	It("ignores terminal events", func() {
		acc.Add(llm.DoneEvent())
		acc.Add(llm.Event{Type: llm.EventError, Payload: "x"})

		Expect(acc.Finalize()).To(BeEmpty())
		Expect(acc.Deltas()).To(BeZero())
	})
})
