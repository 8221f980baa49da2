package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// Ensure QuestionRouter implements the interface.
var _ driving.AskService = (*QuestionRouter)(nil)

// QuestionRouter runs the two-level routing state machine:
//
//	start -> guard_check -> reject | classify
//	classify -> symptom | drug_info | side_effect | generic_retrieve
//	* -> respond
//
// By default every in-domain branch retrieves grounding before generating.
// With BypassRetrieval the three typed branches answer from the role
// instruction alone.
type QuestionRouter struct {
	guard      driving.DomainGuard
	classifier driving.QuestionClassifier
	search     driving.SearchService
	assembler  *AnswerAssembler
	settings   domain.RouterSettings
}

// NewQuestionRouter creates a router. Zero fan-out or top-N select the
// search defaults.
func NewQuestionRouter(
	guard driving.DomainGuard,
	classifier driving.QuestionClassifier,
	search driving.SearchService,
	assembler *AnswerAssembler,
	settings domain.RouterSettings,
) *QuestionRouter {
	return &QuestionRouter{
		guard:      guard,
		classifier: classifier,
		search:     search,
		assembler:  assembler,
		settings:   settings,
	}
}

// Ask answers question without streaming.
func (r *QuestionRouter) Ask(ctx context.Context, question string) (*domain.QueryState, error) {
	return r.run(ctx, question, nil)
}

// AskStream answers question, delivering the answer to onFragment.
func (r *QuestionRouter) AskStream(
	ctx context.Context, question string, onFragment func(string) error,
) (*domain.QueryState, error) {
	if onFragment == nil {
		return nil, fmt.Errorf("ask stream: nil fragment handler: %w", domain.ErrInvalidInput)
	}
	return r.run(ctx, question, onFragment)
}

func (r *QuestionRouter) run(ctx context.Context, question string, onFragment func(string) error) (*domain.QueryState, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("ask: empty question: %w", domain.ErrInvalidInput)
	}

	state := &domain.QueryState{
		ID:        uuid.NewString(),
		Question:  question,
		Citations: []domain.Citation{},
	}
	logger.Section("Question Router")
	logger.Debug("[%s] Question: %q", state.ID, question)
	r.enter(state, domain.StateStart)

	r.enter(state, domain.StateGuardCheck)
	inDomain, err := r.guard.Check(ctx, question)
	if err != nil {
		logger.Warn("[%s] guard failed, using verdict in_domain=%t: %v", state.ID, inDomain, err)
	}
	state.InDomain = inDomain

	if !inDomain {
		r.enter(state, domain.StateReject)
		state.QuestionType = domain.QuestionOutOfDomain
		r.assembler.respond(state, domain.RefusalMessage, onFragment)
		r.enter(state, domain.StateRespond)
		return state, nil
	}

	r.enter(state, domain.StateClassify)
	qt, err := r.classifier.Classify(ctx, question)
	if err != nil {
		logger.Warn("[%s] classifier failed, using %s: %v", state.ID, qt, err)
	}
	if qt == "" || qt == domain.QuestionOutOfDomain {
		qt = domain.QuestionGeneral
	}
	state.QuestionType = qt

	branch := domain.StateFor(qt)
	r.enter(state, branch)

	if r.settings.BypassRetrieval && branch != domain.StateGenericRetrieve {
		logger.Debug("[%s] Retrieval bypassed for %s", state.ID, qt)
		r.assembler.Direct(ctx, state, onFragment)
		r.enter(state, domain.StateRespond)
		return state, nil
	}

	results, err := r.search.Search(ctx, question, domain.SearchOptions{
		FanOut: r.settings.FanOut,
		TopN:   r.settings.TopN,
	})
	if err != nil {
		if IsFatal(err) {
			return state, err
		}
		r.fail(state, err, onFragment)
		r.enter(state, domain.StateRespond)
		return state, nil
	}

	state.Retrieved = results
	r.assembler.Assemble(ctx, state, onFragment)
	r.enter(state, domain.StateRespond)
	return state, nil
}

// fail renders a retrieval failure as an answer.
func (r *QuestionRouter) fail(state *domain.QueryState, err error, onFragment func(string) error) {
	logger.Warn("[%s] retrieval failed: %v", state.ID, err)
	answer := domain.ErrorAnswer(err)
	if errors.Is(err, domain.ErrStoreUnavailable) {
		answer = domain.StoreUnavailableMessage
	}
	r.assembler.respond(state, answer, onFragment)
}

func (r *QuestionRouter) enter(state *domain.QueryState, next domain.RouteState) {
	state.Visit(next)
	logger.Debug("[%s] -> %s", state.ID, next)
}
