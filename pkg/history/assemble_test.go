package history_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/papercomputeco/parley/pkg/history"
	"github.com/papercomputeco/parley/pkg/llm"
)

func turn(role llm.Role, parts ...llm.ContentPart) llm.Turn {
	return llm.Turn{Role: role, Parts: parts}
}

var _ = Describe("Assemble", func() {
	var (
		logger   *zap.Logger
		observed *observer.ObservedLogs
	)

	BeforeEach(func() {
		core, logs := observer.New(zap.DebugLevel)
		logger = zap.New(core)
		observed = logs
	})

	It("puts history before new turns", func() {
		hist := []llm.Turn{
			turn(llm.RoleUser, llm.TextPart{Text: "q1"}),
			turn(llm.RoleAssistant, llm.ReasoningPart{Text: "r"}, llm.TextPart{Text: "a1"}),
		}
		newTurns := []llm.Turn{turn(llm.RoleUser, llm.TextPart{Text: "q2"})}

		msgs := history.Assemble(hist, newTurns, history.ModeSubmit, logger)

		Expect(msgs).To(HaveLen(3))
		Expect(msgs[0].Role).To(Equal(llm.RoleUser))
		Expect(msgs[0].Text()).To(Equal("q1"))
		Expect(msgs[1].Parts).To(HaveLen(2))
		Expect(msgs[2].Text()).To(Equal("q2"))
	})

	It("treats empty new turns as history only", func() {
		hist := []llm.Turn{turn(llm.RoleUser, llm.TextPart{Text: "Explain CAP theorem"})}

		msgs := history.Assemble(hist, nil, history.ModeSubmit, logger)

		Expect(msgs).To(Equal([]llm.Message{
			{Role: llm.RoleUser, Parts: llm.Parts{llm.TextPart{Text: "Explain CAP theorem"}}},
		}))
	})

	It("drops turns with no parts and logs it", func() {
		hist := []llm.Turn{
			turn(llm.RoleUser, llm.TextPart{Text: "q1"}),
			{Role: llm.RoleAssistant},
		}

		msgs := history.Assemble(hist, nil, history.ModeSubmit, logger)

		Expect(msgs).To(HaveLen(1))
		Expect(observed.FilterMessage("dropping turn that could not be converted").Len()).To(Equal(1))
	})

	It("falls back to joined text for parts it cannot convert", func() {
		hist := []llm.Turn{
			turn(llm.RoleUser, llm.TextPart{Text: "line one"}, nil, llm.TextPart{Text: "line two"}),
		}

		msgs := history.Assemble(hist, nil, history.ModeSubmit, logger)

		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Parts).To(Equal(llm.Parts{llm.TextPart{Text: "line one\nline two"}}))
		Expect(observed.FilterMessage("converted turn using text fallback").Len()).To(Equal(1))
	})

	It("drops a failed turn that has no text to fall back on", func() {
		hist := []llm.Turn{turn(llm.RoleAssistant, llm.ReasoningPart{Text: "r"}, nil)}

		msgs := history.Assemble(hist, nil, history.ModeSubmit, logger)

		Expect(msgs).To(BeEmpty())
	})

	It("never emits a message without parts", func() {
		hist := []llm.Turn{
			{Role: llm.RoleUser},
			turn(llm.RoleUser, nil),
			turn(llm.RoleAssistant, llm.StepBoundary{}),
			turn(llm.RoleUser, llm.TextPart{Text: "ok"}),
		}

		for _, m := range history.Assemble(hist, nil, history.ModeSubmit, logger) {
			Expect(m.Parts).NotTo(BeEmpty())
		}
	})

	Describe("ModeRegenerate", func() {
		It("discards the trailing assistant turn", func() {
			hist := []llm.Turn{
				turn(llm.RoleUser, llm.TextPart{Text: "q"}),
				turn(llm.RoleAssistant, llm.TextPart{Text: "bad answer"}),
			}

			msgs := history.Assemble(hist, nil, history.ModeRegenerate, logger)

			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Role).To(Equal(llm.RoleUser))
		})

		It("keeps history that already ends with a user turn", func() {
			hist := []llm.Turn{turn(llm.RoleUser, llm.TextPart{Text: "q"})}

			msgs := history.Assemble(hist, nil, history.ModeRegenerate, logger)

			Expect(msgs).To(HaveLen(1))
		})

		It("does not modify its input", func() {
			hist := []llm.Turn{
				turn(llm.RoleUser, llm.TextPart{Text: "q"}),
				turn(llm.RoleAssistant, llm.TextPart{Text: "a"}),
			}

			_ = history.Assemble(hist, nil, history.ModeRegenerate, logger)

			Expect(hist).To(HaveLen(2))
		})
	})
})
