package domain

// User-facing canned responses.
const (
	// RefusalMessage is returned for out-of-domain questions.
	RefusalMessage = "죄송합니다. 이 시스템은 약품 정보에 대해서만 답변할 수 있습니다. 약품이나 의료 증상에 관한 질문을 해주세요."

	// NoInfoMessage is returned when retrieval finds no grounding.
	NoInfoMessage = "죄송합니다. 관련 정보를 찾을 수 없습니다."

	// StoreUnavailableMessage is returned when the document store cannot be reached.
	StoreUnavailableMessage = "죄송합니다. 지금은 의약품 정보를 조회할 수 없습니다. 잠시 후 다시 시도해주세요."

	// ErrorMarker prefixes provider failures rendered in the answer position.
	ErrorMarker = "❗ 오류 발생: "
)

// ErrorAnswer renders err as an inline answer string.
func ErrorAnswer(err error) string {
	return ErrorMarker + err.Error()
}
