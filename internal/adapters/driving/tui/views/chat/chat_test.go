package chat

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/druginfo/internal/core/domain"
)

type mockAskService struct {
	fragments []string
	state     *domain.QueryState
	err       error
	// block waits for cancellation after sending the fragments.
	block bool
}

func (m *mockAskService) Ask(ctx context.Context, question string) (*domain.QueryState, error) {
	return m.AskStream(ctx, question, func(string) error { return nil })
}

func (m *mockAskService) AskStream(
	ctx context.Context, question string, onFragment func(string) error,
) (*domain.QueryState, error) {
	for _, f := range m.fragments {
		if err := onFragment(f); err != nil {
			return nil, err
		}
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.state, m.err
}

func newReadyView(ask *mockAskService) *View {
	v := NewView(nil, nil, ask)
	v.SetDimensions(100, 30)
	return v
}

// ask types a question, submits it and drains the stream.
func ask(t *testing.T, v *View, question string) *View {
	t.Helper()
	v.input.SetValue(question)
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	for v.Streaming() {
		cmd := v.waitForAnswer()
		require.NotNil(t, cmd)
		v, _ = v.Update(cmd())
	}
	return v
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil)

	require.NotNil(t, v)
	assert.False(t, v.Ready())
	assert.Equal(t, "Initialising...", v.View())
	assert.NotNil(t, v.Init())
}

func TestView_StreamsAnswer(t *testing.T) {
	mock := &mockAskService{
		fragments: []string{"타이레놀정을 ", "복용할 수 있습니다."},
		state: &domain.QueryState{
			Answer:    "타이레놀정을 복용할 수 있습니다.",
			Citations: []domain.Citation{{ProductName: "타이레놀정", Score: 0.91}},
		},
	}
	v := newReadyView(mock)

	v = ask(t, v, "두통에 먹는 약?")

	assert.Equal(t, 1, v.Turns())
	assert.Equal(t, "타이레놀정을 복용할 수 있습니다.", v.Answer(1))
	assert.Empty(t, v.input.Value())
	assert.Equal(t, status.StateReady, v.Status())

	transcript := v.Transcript()
	assert.Contains(t, transcript, "질문: 두통에 먹는 약?")
	assert.Contains(t, transcript, "참고 문서:")
	assert.Contains(t, transcript, "타이레놀정 (0.91)")
	assert.Contains(t, v.View(), "druginfo")
}

func TestView_NonStreamedAnswer(t *testing.T) {
	v := newReadyView(&mockAskService{
		state: &domain.QueryState{Answer: domain.RefusalMessage},
	})

	v = ask(t, v, "오늘 날씨 어때?")

	assert.Equal(t, domain.RefusalMessage, v.Answer(1))
	assert.NotContains(t, v.Transcript(), "참고 문서:")
}

func TestView_AskError(t *testing.T) {
	v := newReadyView(&mockAskService{err: errors.New("store down")})

	v = ask(t, v, "부작용은?")

	assert.Equal(t, status.StateError, v.Status())
	assert.Contains(t, v.Transcript(), "오류: store down")
}

func TestView_EmptyQuestionIgnored(t *testing.T) {
	v := newReadyView(&mockAskService{})

	v.input.SetValue("   ")
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, 0, v.Turns())
	assert.False(t, v.Streaming())
}

func TestView_NoAskService(t *testing.T) {
	v := NewView(nil, nil, nil)
	v.SetDimensions(100, 30)

	v.input.SetValue("질문")
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, status.StateError, v.Status())
	assert.Equal(t, 0, v.Turns())
}

func TestView_StopKeepsPartialAnswer(t *testing.T) {
	v := newReadyView(&mockAskService{fragments: []string{"부분 답변"}, block: true})

	v.input.SetValue("질문")
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, v.Streaming())

	v, _ = v.Update(v.waitForAnswer()())
	assert.Equal(t, "부분 답변", v.Answer(1))

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, v.Streaming())
	assert.Nil(t, v.waitForAnswer())
	assert.Contains(t, v.Transcript(), "부분 답변")
	assert.Contains(t, v.Transcript(), "[중단됨]")
}

func TestView_DropsStaleMessages(t *testing.T) {
	v := newReadyView(&mockAskService{state: &domain.QueryState{Answer: "첫 답변"}})
	v = ask(t, v, "첫 질문")

	v, cmd := v.Update(messages.AnswerFragment{Turn: 1, Text: "늦은 조각"})
	assert.Nil(t, cmd)
	v, _ = v.Update(messages.AnswerCompleted{Turn: 5, Err: errors.New("old")})

	assert.Equal(t, "첫 답변", v.Answer(1))
	assert.Equal(t, status.StateReady, v.Status())
}

func TestView_Clear(t *testing.T) {
	v := newReadyView(&mockAskService{state: &domain.QueryState{Answer: "답"}})
	v = ask(t, v, "질문")

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Equal(t, 0, v.Turns())
	assert.Empty(t, v.Answer(1))
	assert.Contains(t, v.Transcript(), "질문해 보세요")
}

func TestView_MultipleTurns(t *testing.T) {
	mock := &mockAskService{state: &domain.QueryState{Answer: "하나"}}
	v := newReadyView(mock)

	v = ask(t, v, "첫째")
	mock.state = &domain.QueryState{Answer: "둘"}
	v = ask(t, v, "둘째")

	assert.Equal(t, 2, v.Turns())
	assert.Equal(t, "하나", v.Answer(1))
	assert.Equal(t, "둘", v.Answer(2))
	assert.Empty(t, v.Answer(3))
}

func TestView_Typing(t *testing.T) {
	v := newReadyView(&mockAskService{})

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("약")})

	assert.Equal(t, "약", v.input.Value())
}
