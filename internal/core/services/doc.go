// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The question pipeline is:
//
//	DomainGuard -> (reject | QuestionClassifier) -> SearchService -> AnswerAssembler
//
// QuestionRouter owns that state machine. Services are pure Go with no
// CGO or infrastructure dependencies.
package services
