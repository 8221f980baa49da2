package domain

import "strings"

// Metadata keys written by the ingestion pipeline.
const (
	// MetaProductName holds the drug product name.
	MetaProductName = "제품명"

	// MetaCompany holds the manufacturer name.
	MetaCompany = "업체명"

	// MetaDocType holds the DocType of the chunk.
	MetaDocType = "doc_type"

	// MetaSection holds the label section a content chunk was cut from.
	MetaSection = "section"

	// MetaChunkIndex holds the ordinal of a chunk within its section.
	MetaChunkIndex = "chunk_index"
)

// productNameKeys is the lookup order for a document's product name.
var productNameKeys = []string{MetaProductName, "product_name", "title", "product"}

// UnknownProduct is reported when a document carries no product name.
const UnknownProduct = "알 수 없는 제품"

// DocType classifies how a chunk was derived from its drug label.
type DocType string

// Available document types.
const (
	// DocTypeContent is a section body (efficacy, dosage, cautions...).
	DocTypeContent DocType = "content"

	// DocTypeMeta is the product/company header record.
	DocTypeMeta DocType = "meta"

	// DocTypeSummary is a condensed digest of all sections.
	DocTypeSummary DocType = "summary"
)

// IsValid returns true if the document type is recognised.
func (t DocType) IsValid() bool {
	switch t {
	case DocTypeContent, DocTypeMeta, DocTypeSummary:
		return true
	default:
		return false
	}
}

// Document is one embedded chunk in the document store.
// Rows are immutable once written.
type Document struct {
	// ID is assigned by the store at insert time.
	ID int64

	// Content is the chunk text passed to the embedding provider.
	Content string

	// Metadata links the chunk back to its product and section.
	Metadata map[string]string

	// Embedding is nil until the row has been embedded.
	Embedding []float32
}

// ProductName returns the product name recorded in the metadata,
// falling back through the legacy key names before UnknownProduct.
func (d Document) ProductName() string {
	return ProductNameOf(d.Metadata)
}

// ProductNameOf resolves the product name from a metadata map.
func ProductNameOf(metadata map[string]string) string {
	for _, key := range productNameKeys {
		if v := strings.TrimSpace(metadata[key]); v != "" {
			return v
		}
	}
	return UnknownProduct
}

// ScoredDocument is a raw nearest-neighbour hit returned by a vector store.
type ScoredDocument struct {
	Document Document

	// Distance is the raw metric distance to the query vector (lower is closer).
	Distance float64
}
