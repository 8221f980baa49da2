package domain

import "fmt"

// Metadata keys used for QA-pair rows.
const (
	MetaBigCategory = "big_category"
	MetaMidCategory = "mid_category"
	MetaQuestion    = "question"
	MetaAnswer      = "answer"
)

// QAPair is a row of the QA-pair corpus layout. One embedding is stored
// per pair rather than per free-text chunk.
type QAPair struct {
	ID          int64  `json:"id"`
	BigCategory string `json:"big_category"`
	MidCategory string `json:"mid_category"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
}

// Content returns the text embedded for the pair.
func (p QAPair) Content() string {
	return fmt.Sprintf("Q: %s\nA: %s", p.Question, p.Answer)
}

// Document converts the pair into the generic document form.
func (p QAPair) Document() Document {
	meta := map[string]string{
		MetaQuestion: p.Question,
		MetaAnswer:   p.Answer,
	}
	if p.BigCategory != "" {
		meta[MetaBigCategory] = p.BigCategory
	}
	if p.MidCategory != "" {
		meta[MetaMidCategory] = p.MidCategory
	}
	return Document{ID: p.ID, Content: p.Content(), Metadata: meta}
}

// QAPairFromDocument rebuilds a pair from its document form.
func QAPairFromDocument(d Document) QAPair {
	return QAPair{
		ID:          d.ID,
		BigCategory: d.Metadata[MetaBigCategory],
		MidCategory: d.Metadata[MetaMidCategory],
		Question:    d.Metadata[MetaQuestion],
		Answer:      d.Metadata[MetaAnswer],
	}
}
