package chatview

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/pkg/llm"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("141"))
	reasoningStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	ruleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	emptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

// TerminalRenderer writes the conversation to a terminal. Stored assistant
// text is rendered as markdown; streamed deltas are written as they arrive.
type TerminalRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	md    *glamour.TermRenderer
	width int

	streaming llm.EventType
}

var _ Renderer = (*TerminalRenderer)(nil)

// DefaultWidth is the wrap width used when the output is not a terminal.
const DefaultWidth = 80

// TerminalWidth returns the column count of w when it is a terminal and
// DefaultWidth otherwise.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return DefaultWidth
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil || cols <= 0 {
		return DefaultWidth
	}
	return cols
}

// NewTerminalRenderer creates a renderer wrapping at width columns. style
// names a glamour standard style; empty detects one from the terminal.
func NewTerminalRenderer(w io.Writer, width int, style string) (*TerminalRenderer, error) {
	if width <= 0 {
		width = TerminalWidth(w)
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("could not create markdown renderer: %w", err)
	}
	return &TerminalRenderer{w: w, md: md, width: width}, nil
}

func (r *TerminalRenderer) Empty() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.w, emptyStyle.Render(EmptyStateText))
}

func (r *TerminalRenderer) Turn(t llm.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endStream()
	fmt.Fprintln(r.w, roleLabel(t.Role))
	for _, p := range t.Parts {
		fmt.Fprintln(r.w, r.part(t.Role, p))
	}
}

func (r *TerminalRenderer) part(role llm.Role, p llm.ContentPart) string {
	switch p := p.(type) {
	case llm.TextPart:
		if role != llm.RoleAssistant {
			return p.Text
		}
		out, err := r.md.Render(p.Text)
		if err != nil {
			return p.Text
		}
		return strings.TrimRight(out, "\n")
	case llm.ReasoningPart:
		return reasoningStyle.Render(p.Text)
	case llm.StepBoundary:
		return r.rule()
	default:
		return string(p.Type())
	}
}

func (r *TerminalRenderer) Delta(ev llm.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.streaming == "" && ev.Type != llm.EventDone {
		fmt.Fprintln(r.w, roleLabel(llm.RoleAssistant))
	}

	switch ev.Type {
	case llm.EventTextDelta:
		r.switchKind(ev.Type)
		fmt.Fprint(r.w, ev.Payload)
	case llm.EventReasoningDelta:
		r.switchKind(ev.Type)
		fmt.Fprint(r.w, reasoningStyle.Render(ev.Payload))
	case llm.EventStepBoundary:
		r.switchKind(ev.Type)
		fmt.Fprint(r.w, r.rule())
	case llm.EventError:
		r.switchKind(ev.Type)
		fmt.Fprint(r.w, errorStyle.Render("error: "+ev.Payload))
		r.endStream()
	case llm.EventDone:
		r.endStream()
	}
}

// switchKind starts a new line whenever the streamed kind changes.
func (r *TerminalRenderer) switchKind(kind llm.EventType) {
	if r.streaming != "" && r.streaming != kind {
		fmt.Fprintln(r.w)
	}
	r.streaming = kind
}

func (r *TerminalRenderer) endStream() {
	if r.streaming == "" {
		return
	}
	fmt.Fprintln(r.w)
	r.streaming = ""
}

// Close ends a stream that was stopped before its terminal event.
func (r *TerminalRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endStream()
}

func (r *TerminalRenderer) rule() string {
	return ruleStyle.Render(strings.Repeat("─", min(r.width, 40)))
}

func roleLabel(role llm.Role) string {
	if role == llm.RoleAssistant {
		return assistantStyle.Render("assistant")
	}
	return userStyle.Render("you")
}
