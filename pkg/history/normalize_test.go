package history_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/history"
	"github.com/papercomputeco/parley/pkg/llm"
)

func record(id, role, content string) llm.Record {
	return llm.Record{
		ID:             id,
		ConversationID: "conv",
		Role:           role,
		Content:        content,
		CreatedAt:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("Normalize", func() {
	It("parses a stored part list", func() {
		turn, status := history.Normalize(record("t1", "user", `[{"type":"text","text":"hi"}]`))

		Expect(status).To(Equal(history.StatusParsed))
		Expect(turn.Parts).To(Equal(llm.Parts{llm.TextPart{Text: "hi"}}))
		Expect(turn.Role).To(Equal(llm.RoleUser))
		Expect(turn.ID).To(Equal("t1"))
		Expect(turn.ConversationID).To(Equal("conv"))
	})

	It("salvages content that is not json as a single text part", func() {
		turn, status := history.Normalize(record("t1", "user", "not json"))

		Expect(status).To(Equal(history.StatusSalvaged))
		Expect(turn.Parts).To(Equal(llm.Parts{llm.TextPart{Text: "not json"}}))
	})

	It("salvages json that is not a part list verbatim", func() {
		turn, status := history.Normalize(record("t1", "assistant", `{"text":"hi"}`))

		Expect(status).To(Equal(history.StatusSalvaged))
		Expect(turn.Parts).To(Equal(llm.Parts{llm.TextPart{Text: `{"text":"hi"}`}}))
	})

	It("keeps reasoning and step boundaries in order", func() {
		turn, status := history.Normalize(record("t1", "ASSISTANT",
			`[{"type":"step-start"},{"type":"reasoning","text":"hmm"},{"type":"text","text":"ok"}]`))

		Expect(status).To(Equal(history.StatusParsed))
		Expect(turn.Role).To(Equal(llm.RoleAssistant))
		Expect(turn.Parts).To(Equal(llm.Parts{
			llm.StepBoundary{},
			llm.ReasoningPart{Text: "hmm"},
			llm.TextPart{Text: "ok"},
		}))
	})

	It("omits a turn whose parts are all unrecognized", func() {
		_, status := history.Normalize(record("t1", "assistant", `[{"type":"tool-call","id":"x"}]`))
		Expect(status).To(Equal(history.StatusOmitted))
	})

	It("omits a turn with an unknown role", func() {
		_, status := history.Normalize(record("t1", "system", `[{"type":"text","text":"x"}]`))
		Expect(status).To(Equal(history.StatusOmitted))
	})

	DescribeTable("round trips persisted parts",
		func(parts llm.Parts) {
			blob, err := llm.EncodeParts(parts)
			Expect(err).NotTo(HaveOccurred())

			turn, status := history.Normalize(record("t", "assistant", blob))
			Expect(status).To(Equal(history.StatusParsed))
			Expect(turn.Parts).To(Equal(parts))
		},
		Entry("text only", llm.Parts{llm.TextPart{Text: "a"}}),
		Entry("reasoning then text", llm.Parts{llm.ReasoningPart{Text: "r"}, llm.TextPart{Text: "a"}}),
		Entry("step, reasoning, text", llm.Parts{llm.StepBoundary{}, llm.ReasoningPart{Text: "r"}, llm.TextPart{Text: "a"}}),
		Entry("text, step, text", llm.Parts{llm.TextPart{Text: "a"}, llm.StepBoundary{}, llm.TextPart{Text: "b"}}),
		Entry("step only", llm.Parts{llm.StepBoundary{}}),
	)
})

var _ = Describe("NormalizeAll", func() {
	It("never yields a turn without parts", func() {
		records := []llm.Record{
			record("a", "user", `[{"type":"text","text":"one"}]`),
			record("b", "assistant", `[]`),
			record("c", "assistant", `[{"type":"image","url":"x"}]`),
			record("d", "user", "plain"),
			record("e", "assistant", `[{"type":"reasoning","text":"r"}]`),
		}

		turns := history.NormalizeAll(records, zap.NewNop())

		Expect(turns).To(HaveLen(3))
		Expect(turns[0].ID).To(Equal("a"))
		Expect(turns[1].ID).To(Equal("d"))
		Expect(turns[2].ID).To(Equal("e"))
		for _, t := range turns {
			Expect(t.Parts).NotTo(BeEmpty())
		}
	})

	It("returns an empty list when every record is filtered", func() {
		turns := history.NormalizeAll([]llm.Record{record("a", "user", `[]`)}, zap.NewNop())
		Expect(turns).NotTo(BeNil())
		Expect(turns).To(BeEmpty())
	})
})
