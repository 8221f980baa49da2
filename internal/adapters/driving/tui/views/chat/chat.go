// Package chat provides the question and answer view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
)

// reservedLines is the height taken by header, input and status bar.
const reservedLines = 8

// turn is one question and its answer in the transcript.
type turn struct {
	question  string
	answer    strings.Builder
	citations []domain.Citation
	err       error
	done      bool
}

// stream delivers the messages of one in-flight question.
type stream struct {
	fragments chan messages.AnswerFragment
	done      chan messages.AnswerCompleted
	cancel    context.CancelFunc
}

// View is the chat view: a scrolling transcript above a question input.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Input
	viewport  viewport.Model
	spinner   spinner.Model
	statusbar *status.Bar

	askService driving.AskService
	ctx        context.Context

	turns  []*turn
	active *stream

	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, askService driving.AskService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Muted

	bar := status.NewBar(s)
	bar.SetBindings(km.ChatHelp())

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.New(s, "질문>", "증상이나 약에 대해 물어보세요"),
		viewport:   viewport.New(80, 24-reservedLines),
		spinner:    sp,
		statusbar:  bar,
		askService: askService,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerFragment:
		if msg.Turn != len(v.turns) || v.active == nil {
			return v, nil
		}
		v.current().answer.WriteString(msg.Text)
		v.statusbar.SetState(status.StateStreaming)
		v.refresh()
		return v, v.waitForAnswer()

	case messages.AnswerCompleted:
		if msg.Turn != len(v.turns) || v.active == nil {
			return v, nil
		}
		v.finish(msg)
		return v, nil

	case spinner.TickMsg:
		if v.active == nil {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Cancel):
		v.stop()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.Clear):
		if v.active != nil {
			return v, nil
		}
		v.turns = nil
		v.statusbar.Clear()
		v.statusbar.SetMessage("Transcript cleared")
		v.refresh()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.PageUp), keymap.Matches(keyStr, v.keymap.PageDown):
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd

	case keymap.Matches(keyStr, v.keymap.Send):
		return v, v.submit()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit starts a new turn for the typed question.
func (v *View) submit() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.active != nil {
		return nil
	}
	if v.askService == nil {
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(ErrNoAskService.Error())
		return nil
	}

	v.input.Reset()
	v.turns = append(v.turns, &turn{question: question})
	v.statusbar.SetMessage("")
	v.statusbar.SetState(status.StateThinking)
	v.active = v.startStream(len(v.turns), question)
	v.refresh()

	return tea.Batch(v.waitForAnswer(), v.spinner.Tick)
}

// startStream runs the question in the background. Fragments are handed
// over one at a time; completion is buffered so the goroutine never blocks
// once the view stops listening.
func (v *View) startStream(id int, question string) *stream {
	ctx, cancel := context.WithCancel(v.ctx)
	st := &stream{
		fragments: make(chan messages.AnswerFragment),
		done:      make(chan messages.AnswerCompleted, 1),
		cancel:    cancel,
	}

	go func() {
		defer cancel()
		state, err := v.askService.AskStream(ctx, question, func(text string) error {
			select {
			case st.fragments <- messages.AnswerFragment{Turn: id, Text: text}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		st.done <- messages.AnswerCompleted{Turn: id, State: state, Err: err}
	}()

	return st
}

// waitForAnswer returns a command that yields the next message of the active stream.
func (v *View) waitForAnswer() tea.Cmd {
	st := v.active
	if st == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case f := <-st.fragments:
			return f
		case d := <-st.done:
			return d
		}
	}
}

// finish records the outcome of the current turn.
func (v *View) finish(msg messages.AnswerCompleted) {
	t := v.current()
	t.done = true
	v.active.cancel()
	v.active = nil

	switch {
	case msg.Err != nil:
		t.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
	case msg.State != nil:
		// the non-streamed paths (refusal, no results) deliver the answer only here
		if t.answer.Len() == 0 {
			t.answer.WriteString(msg.State.Answer)
		}
		t.citations = msg.State.Citations
		v.statusbar.Clear()
	default:
		v.statusbar.Clear()
	}

	v.refresh()
}

// stop cancels the in-flight question, keeping what was already streamed.
func (v *View) stop() {
	if v.active == nil {
		return
	}
	v.active.cancel()
	v.active = nil

	t := v.current()
	t.done = true
	t.err = errStopped
	v.statusbar.Clear()
	v.statusbar.SetMessage("Stopped")
	v.refresh()
}

func (v *View) current() *turn {
	return v.turns[len(v.turns)-1]
}

// refresh re-renders the transcript into the viewport.
func (v *View) refresh() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

// renderTranscript formats every turn for display.
func (v *View) renderTranscript() string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("의약품 정보, 증상, 부작용에 대해 질문해 보세요.")
	}

	wrap := lipgloss.NewStyle().Width(max(v.width-6, 20))
	blocks := make([]string, 0, len(v.turns))

	for i, t := range v.turns {
		lines := []string{v.styles.Question.Render("질문: " + t.question)}

		answer := t.answer.String()
		switch {
		case answer != "":
			lines = append(lines, v.styles.Answer.Render(wrap.Render(answer)))
		case !t.done && i == len(v.turns)-1:
			lines = append(lines, v.styles.Answer.Render(v.spinner.View()+" 답변을 준비하고 있습니다"))
		}

		if len(t.citations) > 0 {
			lines = append(lines, v.styles.Muted.Render("  참고 문서:"))
			for _, c := range t.citations {
				lines = append(lines, v.styles.Citation.Render(fmt.Sprintf("- %s (%.2f)", c.ProductName, c.Score)))
			}
		}

		switch {
		case errors.Is(t.err, errStopped):
			lines = append(lines, v.styles.Warning.Render("  [중단됨]"))
		case t.err != nil:
			lines = append(lines, v.styles.Error.Render("  오류: "+t.err.Error()))
		}

		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	return strings.Join(blocks, "\n\n")
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := []string{
		v.styles.Title.Render("druginfo"),
		v.styles.Subtitle.Render("의약품 상담"),
		"",
		v.viewport.View(),
		"",
		v.input.View(),
		"",
		v.statusbar.View(),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.viewport.Width = width
	v.viewport.Height = max(height-reservedLines, 3)
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// Focus gives the question input focus.
func (v *View) Focus() tea.Cmd {
	return v.input.Focus()
}

// Blur removes focus from the question input.
func (v *View) Blur() {
	v.input.Blur()
}

// Streaming reports whether a question is in flight.
func (v *View) Streaming() bool {
	return v.active != nil
}

// Turns returns the number of questions asked.
func (v *View) Turns() int {
	return len(v.turns)
}

// Answer returns the answer text of the given turn, numbered from 1.
func (v *View) Answer(n int) string {
	if n < 1 || n > len(v.turns) {
		return ""
	}
	return v.turns[n-1].answer.String()
}

// Transcript returns the rendered transcript.
func (v *View) Transcript() string {
	return v.renderTranscript()
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Status returns the status bar state.
func (v *View) Status() status.State {
	return v.statusbar.State()
}
