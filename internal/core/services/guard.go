package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// Ensure DomainGuard implements the interface.
var _ driving.DomainGuard = (*DomainGuard)(nil)

// Guard labels.
const (
	guardYes = "YES"
	guardNo  = "NO"
)

// labelTemperature keeps guard and classifier verdicts reproducible.
const labelTemperature = 0.0

// DomainGuard classifies questions as in or out of the drug domain with a
// YES/NO LLM prompt. Unparseable output resolves to the configured default,
// which is in-domain unless overridden.
type DomainGuard struct {
	llm             driven.LLMService
	prompts         driven.PromptStore
	defaultInDomain bool
}

// NewDomainGuard creates a guard that fails open.
func NewDomainGuard(llm driven.LLMService) *DomainGuard {
	return &DomainGuard{llm: llm, defaultInDomain: true}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (g *DomainGuard) SetPromptStore(store driven.PromptStore) {
	g.prompts = store
}

// SetDefault overrides the verdict used for unparseable classifier output.
func (g *DomainGuard) SetDefault(inDomain bool) {
	g.defaultInDomain = inDomain
}

// Check returns the in-domain verdict. On provider failure it returns the
// default verdict together with the error.
func (g *DomainGuard) Check(ctx context.Context, question string) (bool, error) {
	prompt := fmt.Sprintf(loadPrompt(g.prompts, driven.PromptGuard), question)

	resp, err := g.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 4, Temperature: labelTemperature})
	if err != nil {
		return g.defaultInDomain, fmt.Errorf("domain guard: %w", err)
	}

	inDomain, err := ParseGuardVerdict(resp)
	if err != nil {
		logger.Debug("Guard output %q unparseable, defaulting to in_domain=%t", resp, g.defaultInDomain)
		return g.defaultInDomain, nil
	}
	return inDomain, nil
}

// ParseGuardVerdict strictly parses a YES/NO label, ignoring case,
// surrounding whitespace and trailing punctuation.
func ParseGuardVerdict(s string) (bool, error) {
	label := strings.ToUpper(strings.Trim(strings.TrimSpace(s), " \t\r\n.!\"'`"))
	switch label {
	case guardYes:
		return true, nil
	case guardNo:
		return false, nil
	default:
		return false, fmt.Errorf("guard label %q: %w", s, domain.ErrClassificationAmbiguous)
	}
}
