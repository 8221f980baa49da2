package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

func TestViewType_String(t *testing.T) {
	assert.Equal(t, "chat", ViewChat.String())
	assert.Equal(t, "search", ViewSearch.String())
	assert.Equal(t, "unknown", ViewType(99).String())
}

func TestAnswerCompleted(t *testing.T) {
	state := &domain.QueryState{Answer: "답변"}
	msg := AnswerCompleted{Turn: 2, State: state, Err: errors.New("x")}

	assert.Equal(t, 2, msg.Turn)
	assert.Same(t, state, msg.State)
	assert.EqualError(t, msg.Err, "x")
}
