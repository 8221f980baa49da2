package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default
	// or an error when no default exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptGuard asks for a YES/NO in-domain verdict.
	// The template expects a %s placeholder for the question.
	PromptGuard = "guard"

	// PromptClassify asks for one question-type label.
	// The template expects a %s placeholder for the question.
	PromptClassify = "classify"

	// PromptAnswerSystem is the system instruction for grounded answers.
	// It has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptSymptom, PromptDrugInfo and PromptSideEffect are role-specific
	// instructions for the typed branches. They have no format placeholders.
	PromptSymptom    = "symptom"
	PromptDrugInfo   = "drug_info"
	PromptSideEffect = "side_effect"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service uses hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
