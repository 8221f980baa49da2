package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// Ensure QuestionClassifier implements the interface.
var _ driving.QuestionClassifier = (*QuestionClassifier)(nil)

// QuestionClassifier assigns one of symptom, drug_info, side_effect or
// general to an in-domain question. Unparseable output resolves to general.
type QuestionClassifier struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewQuestionClassifier creates a classifier backed by llm.
func NewQuestionClassifier(llm driven.LLMService) *QuestionClassifier {
	return &QuestionClassifier{llm: llm}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (c *QuestionClassifier) SetPromptStore(store driven.PromptStore) {
	c.prompts = store
}

// Classify returns the question type. On provider failure it returns
// general together with the error.
func (c *QuestionClassifier) Classify(ctx context.Context, question string) (domain.QuestionType, error) {
	prompt := fmt.Sprintf(loadPrompt(c.prompts, driven.PromptClassify), question)

	resp, err := c.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 8, Temperature: labelTemperature})
	if err != nil {
		return domain.QuestionGeneral, fmt.Errorf("classify: %w", err)
	}

	qt, ok := domain.ParseQuestionType(resp)
	if !ok {
		logger.Debug("Classifier output %q unparseable, defaulting to %s", resp, domain.QuestionGeneral)
		return domain.QuestionGeneral, nil
	}
	return qt, nil
}
