package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// SnippetLength is the maximum citation snippet length in characters.
const SnippetLength = 300

// AnswerAssembler builds grounded generation requests from retrieved
// documents and binds the answer to its citations. It holds no per-request
// state.
type AnswerAssembler struct {
	llm         driven.LLMService
	prompts     driven.PromptStore
	temperature float64
	maxTokens   int
}

// NewAnswerAssembler creates an assembler generating with temperature.
func NewAnswerAssembler(llm driven.LLMService, temperature float64) *AnswerAssembler {
	return &AnswerAssembler{llm: llm, temperature: temperature, maxTokens: 1024}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (a *AnswerAssembler) SetPromptStore(store driven.PromptStore) {
	a.prompts = store
}

// Assemble fills state.Context, state.Citations and state.Answer from
// state.Retrieved. With nothing retrieved the answer is NoInfoMessage and no
// generation call is made. onFragment may be nil for a blocking call.
func (a *AnswerAssembler) Assemble(ctx context.Context, state *domain.QueryState, onFragment func(string) error) {
	if len(state.Retrieved) == 0 {
		logger.Debug("No grounding, short-circuiting generation")
		state.Context = ""
		state.Citations = []domain.Citation{}
		a.respond(state, domain.NoInfoMessage, onFragment)
		return
	}

	state.Context = BuildContext(state.Retrieved)
	state.Citations = BuildCitations(state.Retrieved)

	system := loadPrompt(a.prompts, driven.PromptAnswerSystem)
	if instr := a.typeInstruction(state.QuestionType); instr != "" {
		system += "\n\n" + instr
	}
	user := fmt.Sprintf("질문: %s\n\nCONTEXT:\n%s", state.Question, state.Context)

	state.Answer = a.generate(ctx, system, user, onFragment)
}

// Direct answers from the role-specific instruction alone, without
// grounding. Citations are left empty.
func (a *AnswerAssembler) Direct(ctx context.Context, state *domain.QueryState, onFragment func(string) error) {
	state.Context = ""
	state.Citations = []domain.Citation{}

	system := a.typeInstruction(state.QuestionType)
	if system == "" {
		system = loadPrompt(a.prompts, driven.PromptAnswerSystem)
	}
	state.Answer = a.generate(ctx, system, state.Question, onFragment)
}

func (a *AnswerAssembler) typeInstruction(qt domain.QuestionType) string {
	switch qt {
	case domain.QuestionSymptom:
		return loadPrompt(a.prompts, driven.PromptSymptom)
	case domain.QuestionDrugInfo:
		return loadPrompt(a.prompts, driven.PromptDrugInfo)
	case domain.QuestionSideEffect:
		return loadPrompt(a.prompts, driven.PromptSideEffect)
	default:
		return ""
	}
}

// generate runs the provider call. Provider failures become an inline
// error-marker answer instead of an error.
func (a *AnswerAssembler) generate(ctx context.Context, system, user string, onFragment func(string) error) string {
	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}
	opts := driven.ChatOptions{MaxTokens: a.maxTokens, Temperature: a.temperature}

	if onFragment == nil {
		text, err := a.llm.Chat(ctx, messages, opts)
		if err != nil {
			logger.Warn("generation failed: %v", err)
			return domain.ErrorAnswer(err)
		}
		return Sanitize(text)
	}

	var raw strings.Builder
	var clean StreamSanitizer
	err := a.llm.ChatStream(ctx, messages, opts, func(fragment string) error {
		raw.WriteString(fragment)
		if out := clean.Write(fragment); out != "" {
			return onFragment(out)
		}
		return nil
	})
	if err == nil {
		return Sanitize(raw.String())
	}

	if errors.Is(err, context.Canceled) {
		logger.Debug("Generation cancelled after %d bytes", raw.Len())
		return Sanitize(raw.String())
	}

	logger.Warn("streaming generation failed: %v", err)
	marker := domain.ErrorAnswer(err)
	_ = onFragment(marker)
	if partial := Sanitize(raw.String()); partial != "" {
		return partial + "\n\n" + marker
	}
	return marker
}

// respond sets a canned answer and forwards it as a single fragment.
func (a *AnswerAssembler) respond(state *domain.QueryState, answer string, onFragment func(string) error) {
	state.Answer = answer
	if onFragment != nil {
		_ = onFragment(answer)
	}
}

// BuildContext renders retrieved documents as "[제품명: P] content" blocks
// in ranking order.
func BuildContext(results []domain.RetrievalResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[%s: %s] %s", domain.MetaProductName, r.ProductName(), r.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildCitations returns one citation per result, parallel to results.
func BuildCitations(results []domain.RetrievalResult) []domain.Citation {
	citations := make([]domain.Citation, len(results))
	for i, r := range results {
		citations[i] = domain.Citation{
			ProductName: r.ProductName(),
			Score:       r.Score,
			Snippet:     Snippet(r.Content, SnippetLength),
		}
	}
	return citations
}

// Snippet returns the first n characters of text with newlines collapsed to spaces.
func Snippet(text string, n int) string {
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
