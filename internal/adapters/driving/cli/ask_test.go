package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)
	for _, name := range []string{"json", "trace", "stream"} {
		assert.NotNil(t, askCmd.Flags().Lookup(name), name)
	}
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := runCommand(t, "", "ask")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAskCmd_PrintsAnswerAndCitations(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand(t, "", "ask", "타이레놀", "복용법")

	require.NoError(t, err)
	assert.Equal(t, []string{"타이레놀 복용법"}, ts.ask.questions)
	assert.Contains(t, out, "1회 1정씩 복용합니다.")
	assert.Contains(t, out, "참고 문서:")
	assert.Contains(t, out, "[1] 타이레놀정 (0.91)")
	assert.NotContains(t, out, "Trace:")
}

func TestAskCmd_Trace(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand(t, "", "ask", "--trace", "질문")

	require.NoError(t, err)
	assert.Contains(t, out, "Trace: start -> guard_check -> classify -> drug_info -> respond (drug_info)")
}

func TestAskCmd_Stream(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand(t, "", "ask", "--stream", "질문")

	require.NoError(t, err)
	assert.Contains(t, out, "1회 1정씩 복용합니다.\n")
	assert.Contains(t, out, "타이레놀정")
}

func TestAskCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand(t, "", "ask", "--json", "질문")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "1회 1정씩 복용합니다.", got["answer"])
	assert.Equal(t, "drug_info", got["question_type"])
	assert.Nil(t, got["trace"])
	assert.Nil(t, got["retrieved"])
}

func TestAskCmd_JSONWithTrace(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := runCommand(t, "", "ask", "--json", "--trace", "질문")
	require.NoError(t, err)

	var got domain.QueryState
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got.Trace, 5)
	assert.Empty(t, got.Retrieved)
}

func TestAskCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ask.err = errors.New("llm down")

	_, err := runCommand(t, "", "ask", "질문")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ask failed: llm down")
}

func TestAskCmd_ServiceNotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	SetServices(&Services{})
	bootstrap = nil

	_, err := runCommand(t, "", "ask", "질문")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ask service not configured")
}
