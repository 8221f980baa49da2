package driving

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// AskService answers drug questions end to end.
type AskService interface {
	// Ask routes the question and returns the completed state. The returned
	// state always carries an answer; the error is non-nil only for fatal
	// configuration problems such as a dimension mismatch.
	Ask(ctx context.Context, question string) (*domain.QueryState, error)

	// AskStream is Ask with the answer delivered incrementally to onFragment.
	// The returned state holds the sanitized full answer.
	AskStream(ctx context.Context, question string, onFragment func(string) error) (*domain.QueryState, error)
}

// DomainGuard decides whether a question is about medication.
type DomainGuard interface {
	// Check returns true for in-domain questions.
	Check(ctx context.Context, question string) (bool, error)
}

// QuestionClassifier assigns a question type to an in-domain question.
type QuestionClassifier interface {
	// Classify returns one of symptom, drug_info, side_effect or general.
	Classify(ctx context.Context, question string) (domain.QuestionType, error)
}
