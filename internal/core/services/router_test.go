package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

type routerFixture struct {
	router *QuestionRouter
	llm    *mockLLMService
	emb    *mockEmbeddingService
}

func newRouterFixture(
	t *testing.T, llm *mockLLMService, emb *mockEmbeddingService, store driven.VectorStore,
	settings domain.RouterSettings, docs ...domain.Document,
) *routerFixture {
	t.Helper()
	ds := NewDocumentStore(emb, store, 0)
	if len(docs) > 0 {
		_, err := ds.InsertBatch(context.Background(), docs)
		require.NoError(t, err)
	}
	emb.calls = 0

	router := NewQuestionRouter(
		NewDomainGuard(llm),
		NewQuestionClassifier(llm),
		NewSearchService(ds),
		NewAnswerAssembler(llm, settings.Temperature),
		settings,
	)
	return &routerFixture{router: router, llm: llm, emb: emb}
}

func defaultRouterSettings() domain.RouterSettings {
	return domain.DefaultAppSettings().Router
}

func TestQuestionRouter_TylenolSideEffect(t *testing.T) {
	llm := scriptedLLM("YES", "side_effect")
	llm.chatReply = "타이레놀은 드물게 알레르기 반응이 나타날 수 있습니다."
	emb := newMockEmbedding(3)
	emb.keywords["부작용"] = []float32{1, 0, 0}
	f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings(),
		labelDoc("...부작용: 드물게 알레르기...", "타이레놀"),
	)

	state, err := f.router.Ask(context.Background(), "타이레놀 부작용 알려줘")

	require.NoError(t, err)
	assert.True(t, state.InDomain)
	assert.Equal(t, domain.QuestionSideEffect, state.QuestionType)
	require.Len(t, state.Citations, 1)
	assert.Equal(t, "타이레놀", state.Citations[0].ProductName)
	assert.NotEmpty(t, state.Answer)
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, []domain.RouteState{
		domain.StateStart, domain.StateGuardCheck, domain.StateClassify,
		domain.StateSideEffect, domain.StateRespond,
	}, state.Trace)
}

func TestQuestionRouter_OutOfDomainRefused(t *testing.T) {
	llm := scriptedLLM("NO", "general")
	emb := newMockEmbedding(3)
	f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings(),
		labelDoc("해열 진통", "게보린"),
	)

	state, err := f.router.Ask(context.Background(), "오늘 날씨 어때?")

	require.NoError(t, err)
	assert.False(t, state.InDomain)
	assert.Equal(t, domain.RefusalMessage, state.Answer)
	assert.Empty(t, state.Citations)
	assert.Equal(t, 0, f.emb.calls)
	assert.Equal(t, 1, llm.generateCalls)
	assert.Equal(t, 0, llm.chatCalls)
	assert.Equal(t, []domain.RouteState{
		domain.StateStart, domain.StateGuardCheck, domain.StateReject, domain.StateRespond,
	}, state.Trace)
}

func TestQuestionRouter_NoGroundingAnswer(t *testing.T) {
	llm := scriptedLLM("YES", "drug_info")
	emb := newMockEmbedding(3)
	f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings())

	state, err := f.router.Ask(context.Background(), "희귀약 X 효능?")

	require.NoError(t, err)
	assert.Equal(t, domain.NoInfoMessage, state.Answer)
	assert.Empty(t, state.Citations)
	assert.Equal(t, 0, llm.chatCalls)
}

func TestQuestionRouter_EveryBranchRetrievesByDefault(t *testing.T) {
	for _, label := range []string{"symptom", "drug_info", "side_effect", "general", "garbage"} {
		t.Run(label, func(t *testing.T) {
			llm := scriptedLLM("YES", label)
			llm.chatReply = "답변"
			emb := newMockEmbedding(3)
			f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings(),
				labelDoc("두통 완화", "게보린"),
			)

			state, err := f.router.Ask(context.Background(), "두통이 심해요")

			require.NoError(t, err)
			assert.Equal(t, 1, f.emb.calls)
			assert.Len(t, state.Citations, 1)
			assert.Equal(t, "답변", state.Answer)
		})
	}
}

func TestQuestionRouter_BypassRetrieval(t *testing.T) {
	settings := defaultRouterSettings()
	settings.BypassRetrieval = true

	t.Run("typed branch answers directly", func(t *testing.T) {
		llm := scriptedLLM("YES", "symptom")
		llm.chatReply = "추천 약 이름: 게보린"
		emb := newMockEmbedding(3)
		f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), settings,
			labelDoc("두통 완화", "게보린"),
		)

		state, err := f.router.Ask(context.Background(), "머리가 아파요")

		require.NoError(t, err)
		assert.Equal(t, 0, f.emb.calls)
		assert.Empty(t, state.Citations)
		assert.Equal(t, "추천 약 이름: 게보린", state.Answer)
	})

	t.Run("general still retrieves", func(t *testing.T) {
		llm := scriptedLLM("YES", "general")
		llm.chatReply = "답변"
		emb := newMockEmbedding(3)
		f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), settings,
			labelDoc("보관법: 실온", "게보린"),
		)

		state, err := f.router.Ask(context.Background(), "약 보관 방법")

		require.NoError(t, err)
		assert.Equal(t, 1, f.emb.calls)
		assert.Len(t, state.Citations, 1)
	})
}

func TestQuestionRouter_StoreUnavailableApology(t *testing.T) {
	llm := scriptedLLM("YES", "drug_info")
	store := &failingVectorStore{err: fmt.Errorf("dial tcp: %w", domain.ErrStoreUnavailable), dimension: 3}
	f := newRouterFixture(t, llm, newMockEmbedding(3), store, defaultRouterSettings())

	state, err := f.router.Ask(context.Background(), "타이레놀 효능")

	require.NoError(t, err)
	assert.Equal(t, domain.StoreUnavailableMessage, state.Answer)
	assert.Empty(t, state.Citations)
	assert.Equal(t, domain.StateRespond, state.Trace[len(state.Trace)-1])
}

func TestQuestionRouter_EmbeddingFailureBecomesMarker(t *testing.T) {
	llm := scriptedLLM("YES", "drug_info")
	emb := newMockEmbedding(3)
	f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings())
	emb.err = errNetwork

	state, err := f.router.Ask(context.Background(), "타이레놀 효능")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(state.Answer, domain.ErrorMarker))
}

func TestQuestionRouter_DimensionMismatchReturned(t *testing.T) {
	llm := scriptedLLM("YES", "drug_info")
	f := newRouterFixture(t, llm, newMockEmbedding(4), memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings())

	_, err := f.router.Ask(context.Background(), "타이레놀 효능")

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestQuestionRouter_GuardFailureFailsOpen(t *testing.T) {
	llm := scriptedLLM("", "general")
	llm.chatReply = "답변"
	f := newRouterFixture(t, llm, newMockEmbedding(3), memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings(),
		labelDoc("내용", "P"),
	)

	state, err := f.router.Ask(context.Background(), "질문")

	require.NoError(t, err)
	assert.True(t, state.InDomain)
	assert.Equal(t, domain.QuestionGeneral, state.QuestionType)
}

func TestQuestionRouter_EmptyQuestion(t *testing.T) {
	f := newRouterFixture(t, newMockLLM(), newMockEmbedding(3), memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings())

	_, err := f.router.Ask(context.Background(), "  ")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuestionRouter_AskStream(t *testing.T) {
	llm := scriptedLLM("YES", "drug_info")
	llm.fragments = []string{"**타이레놀**은 ", "해열제입니다."}
	emb := newMockEmbedding(3)
	f := newRouterFixture(t, llm, emb, memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings(),
		labelDoc("타이레놀 효능: 해열", "타이레놀"),
	)

	var got strings.Builder
	state, err := f.router.AskStream(context.Background(), "타이레놀 효능", func(s string) error {
		got.WriteString(s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "타이레놀은 해열제입니다.", got.String())
	assert.Equal(t, got.String(), state.Answer)
	assert.Len(t, state.Citations, 1)
}

func TestQuestionRouter_AskStreamRefusalIsSingleFragment(t *testing.T) {
	f := newRouterFixture(t, scriptedLLM("NO", ""), newMockEmbedding(3), memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings())

	var fragments []string
	state, err := f.router.AskStream(context.Background(), "주식 추천", func(s string) error {
		fragments = append(fragments, s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{domain.RefusalMessage}, fragments)
	assert.Equal(t, domain.RefusalMessage, state.Answer)
}

func TestQuestionRouter_AskStreamNilHandler(t *testing.T) {
	f := newRouterFixture(t, newMockLLM(), newMockEmbedding(3), memory.NewVectorStore(3, domain.MetricCosine), defaultRouterSettings())

	_, err := f.router.AskStream(context.Background(), "질문", nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
