package domain

import "strings"

// QuestionType is the routing label assigned to a question.
type QuestionType string

// Question types produced by the classifiers.
const (
	QuestionSymptom     QuestionType = "symptom"
	QuestionDrugInfo    QuestionType = "drug_info"
	QuestionSideEffect  QuestionType = "side_effect"
	QuestionGeneral     QuestionType = "general"
	QuestionOutOfDomain QuestionType = "out_of_domain"
)

// ParseQuestionType strictly parses a classifier label. Matching is
// case-insensitive and ignores surrounding whitespace and punctuation.
// Labels used by earlier prompt revisions (medicine_info, drug_info_agent...)
// are accepted as aliases.
func ParseQuestionType(s string) (QuestionType, bool) {
	label := strings.ToLower(strings.Trim(strings.TrimSpace(s), " \t\r\n.\"'`"))
	switch label {
	case "symptom", "symptom_agent":
		return QuestionSymptom, true
	case "drug_info", "medicine_info", "drug_info_agent":
		return QuestionDrugInfo, true
	case "side_effect", "side_effect_agent":
		return QuestionSideEffect, true
	case "general", "generic", "generic_retrieve":
		return QuestionGeneral, true
	default:
		return "", false
	}
}

// String returns the string representation.
func (q QuestionType) String() string {
	return string(q)
}

// RouteState is a node of the question-routing state machine.
type RouteState string

// Router states.
const (
	StateStart           RouteState = "start"
	StateGuardCheck      RouteState = "guard_check"
	StateReject          RouteState = "reject"
	StateClassify        RouteState = "classify"
	StateSymptom         RouteState = "symptom"
	StateDrugInfo        RouteState = "drug_info"
	StateSideEffect      RouteState = "side_effect"
	StateGenericRetrieve RouteState = "generic_retrieve"
	StateRespond         RouteState = "respond"
)

// StateFor returns the branch state handling a question type.
func StateFor(q QuestionType) RouteState {
	switch q {
	case QuestionSymptom:
		return StateSymptom
	case QuestionDrugInfo:
		return StateDrugInfo
	case QuestionSideEffect:
		return StateSideEffect
	case QuestionOutOfDomain:
		return StateReject
	default:
		return StateGenericRetrieve
	}
}

// QueryState is created per question, mutated node by node through the
// router and discarded after the response is returned.
type QueryState struct {
	// ID identifies the request in logs.
	ID string `json:"id"`

	Question     string            `json:"question"`
	InDomain     bool              `json:"in_domain"`
	QuestionType QuestionType      `json:"question_type"`
	Retrieved    []RetrievalResult `json:"retrieved,omitempty"`
	Context      string            `json:"-"`
	Citations    []Citation        `json:"citations"`
	Answer       string            `json:"answer"`

	// Trace lists the visited router states in order.
	Trace []RouteState `json:"trace,omitempty"`
}

// Visit appends a state to the trace.
func (s *QueryState) Visit(state RouteState) {
	s.Trace = append(s.Trace, state)
}
