package chatview_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/chatview"
	"github.com/papercomputeco/parley/pkg/llm"
)

var _ = Describe("TerminalRenderer", func() {
	var (
		out *bytes.Buffer
		r   *chatview.TerminalRenderer
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		var err error
		r, err = chatview.NewTerminalRenderer(out, 60, "notty")
		Expect(err).NotTo(HaveOccurred())
	})

	It("draws the empty state", func() {
		r.Empty()
		Expect(out.String()).To(ContainSubstring(chatview.EmptyStateText))
	})

	It("draws every kind of part of a stored turn", func() {
		r.Turn(llm.Turn{Role: llm.RoleAssistant, Parts: llm.Parts{
			llm.ReasoningPart{Text: "weighing options"},
			llm.StepBoundary{},
			llm.TextPart{Text: "Pick **two** of three."},
		}})

		s := out.String()
		Expect(s).To(ContainSubstring("assistant"))
		Expect(s).To(ContainSubstring("weighing options"))
		Expect(s).To(ContainSubstring("───"))
		Expect(s).To(ContainSubstring("Pick"))
		Expect(s).To(ContainSubstring("of three."))
	})

	It("writes user text verbatim", func() {
		r.Turn(llm.NewUserTurn("Explain **CAP** theorem"))
		Expect(out.String()).To(ContainSubstring("Explain **CAP** theorem"))
	})

	It("writes deltas as they arrive", func() {
		r.Delta(llm.ReasoningDelta("hmm"))
		r.Delta(llm.TextDelta("Hel"))
		r.Delta(llm.TextDelta("lo"))
		r.Delta(llm.DoneEvent())

		s := out.String()
		Expect(s).To(ContainSubstring("hmm"))
		Expect(s).To(ContainSubstring("Hello\n"))
	})

	It("shows stream errors", func() {
		r.Delta(llm.Event{Type: llm.EventError, Payload: "upstream down"})
		Expect(out.String()).To(ContainSubstring("error: upstream down"))
	})

	Describe("TerminalWidth", func() {
		It("falls back off a terminal", func() {
			Expect(chatview.TerminalWidth(&bytes.Buffer{})).To(Equal(chatview.DefaultWidth))

			devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
			Expect(err).NotTo(HaveOccurred())
			defer devNull.Close()
			Expect(chatview.TerminalWidth(devNull)).To(Equal(chatview.DefaultWidth))
		})
	})
})
