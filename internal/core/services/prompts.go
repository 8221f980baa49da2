package services

import (
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

const defaultGuardPrompt = `당신은 질문 분류기입니다. 아래 질문이 의약품(약 이름, 효능, 용법, 상호작용, 이상반응, 보관법) 또는 의료 증상에 관한 것이면 YES, 아니면 NO 로만 답하세요.
다른 말은 절대 하지 마세요.

질문: %s
답:`

const defaultClassifyPrompt = `다음 질문을 아래 라벨 중 하나로만 분류하세요. 라벨 외의 말은 하지 마세요.
- symptom: 증상을 설명하며 어떤 약을 먹어야 하는지 묻는 질문
- drug_info: 특정 약의 효능, 용법, 성분 등 정보를 묻는 질문
- side_effect: 약 복용 후 나타난 이상 증상이나 부작용에 관한 질문
- general: 그 밖의 의약품 관련 질문

질문: %s
라벨:`

const defaultAnswerSystemPrompt = `당신은 한국어로 답하는 약사 도우미입니다. 반드시 CONTEXT에 있는 정보만 사용해 답하고, CONTEXT에 없는 내용은 지어내지 마세요.
- 먼저 3~5줄로 핵심을 요약하세요.
- 필요한 경우 효능, 용법, 주의사항을 목록으로 정리하세요.
- 마지막에 '근거' 항목을 두고 참고한 제품명을 나열하세요.
- CONTEXT로 답할 수 없으면 모른다고 말하고 의사나 약사와 상담하도록 안내하세요.`

const defaultSymptomPrompt = `사용자가 설명한 증상에 맞는 일반의약품을 안내하세요. 다음 형식으로 답하세요.
추천 약 이름:
주요 효능:
복용 방법:
주의사항:`

const defaultDrugInfoPrompt = `사용자가 묻는 약의 정보를 안내하세요. 다음 형식으로 답하세요.
약 이름:
주요 효능:
복용 방법:
부작용 및 주의사항:`

const defaultSideEffectPrompt = `사용자가 겪는 증상이 어떤 약의 부작용일 수 있는지 분석하세요. 다음 형식으로 답하세요.
의심되는 약:
근거 설명:
권장 조치:`

// DefaultPrompts returns the built-in prompt templates keyed by prompt name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptGuard:        defaultGuardPrompt,
		driven.PromptClassify:     defaultClassifyPrompt,
		driven.PromptAnswerSystem: defaultAnswerSystemPrompt,
		driven.PromptSymptom:      defaultSymptomPrompt,
		driven.PromptDrugInfo:     defaultDrugInfoPrompt,
		driven.PromptSideEffect:   defaultSideEffectPrompt,
	}
}

// loadPrompt loads a prompt from the store, falling back to the built-in
// default if unavailable.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		if prompt, err := store.Load(name); err == nil && prompt != "" {
			return prompt
		}
	}
	return DefaultPrompts()[name]
}
