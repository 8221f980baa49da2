package domain

// Label sections in the order they are chunked.
var LabelSections = []string{
	"효능",
	"사용법",
	"사용 전 주의",
	"사용상 주의사항",
	"약/음식 주의",
	"이상반응",
	"보관법",
}

// DrugLabel is one product record of the drug-label corpus.
type DrugLabel struct {
	// ProductName is the product name; required.
	ProductName string `json:"제품명"`

	// Company is the manufacturer.
	Company string `json:"업체명,omitempty"`

	// Sections maps a section label (효능, 사용법, 이상반응...) to its text.
	Sections map[string]string `json:"-"`
}
