// Package chunker splits drug labels into embeddable documents.
package chunker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// DefaultChunkSize is the default number of characters (runes) per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// summarySentenceLimit caps each section digest in the summary document.
const summarySentenceLimit = 120

// Processor turns drug labels into content, meta and summary documents.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Split cuts text into rune windows of chunkSize advancing by chunkSize-overlap.
// Blank text produces no chunks.
func (p *Processor) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := p.chunkSize - p.overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Process converts one label into documents: a content document per
// non-empty section window, one meta document and one summary document.
// Labels without a product name produce nothing.
func (p *Processor) Process(label domain.DrugLabel) []domain.Document {
	product := strings.TrimSpace(label.ProductName)
	if product == "" {
		return nil
	}

	var docs []domain.Document
	var present []string
	var digest []string

	for _, section := range orderedSections(label.Sections) {
		body := strings.TrimSpace(label.Sections[section])
		if body == "" {
			continue
		}
		present = append(present, section)
		digest = append(digest, fmt.Sprintf("%s: %s", section, firstSentence(body)))

		for i, chunk := range p.Split(body) {
			docs = append(docs, domain.Document{
				Content: fmt.Sprintf("%s %s: %s", product, section, chunk),
				Metadata: map[string]string{
					domain.MetaProductName: product,
					domain.MetaDocType:     string(domain.DocTypeContent),
					domain.MetaSection:     section,
					domain.MetaChunkIndex:  strconv.Itoa(i),
				},
			})
		}
	}

	meta := fmt.Sprintf("제품명: %s", product)
	if label.Company != "" {
		meta += fmt.Sprintf("\n업체명: %s", label.Company)
	}
	if len(present) > 0 {
		meta += fmt.Sprintf("\n수록 항목: %s", strings.Join(present, ", "))
	}
	metaDoc := domain.Document{
		Content: meta,
		Metadata: map[string]string{
			domain.MetaProductName: product,
			domain.MetaDocType:     string(domain.DocTypeMeta),
		},
	}
	if label.Company != "" {
		metaDoc.Metadata[domain.MetaCompany] = label.Company
	}
	docs = append(docs, metaDoc)

	if len(digest) > 0 {
		docs = append(docs, domain.Document{
			Content: fmt.Sprintf("%s 요약\n%s", product, strings.Join(digest, "\n")),
			Metadata: map[string]string{
				domain.MetaProductName: product,
				domain.MetaDocType:     string(domain.DocTypeSummary),
			},
		})
	}

	return docs
}

// orderedSections lists the well-known sections first, then any others in
// lexical order so output is deterministic.
func orderedSections(sections map[string]string) []string {
	known := make(map[string]bool, len(domain.LabelSections))
	out := make([]string, 0, len(sections))
	for _, s := range domain.LabelSections {
		known[s] = true
		if _, ok := sections[s]; ok {
			out = append(out, s)
		}
	}

	var extra []string
	for s := range sections {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// firstSentence returns text up to and including the first sentence
// terminator, capped at summarySentenceLimit runes.
func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i+1]
	}
	runes := []rune(text)
	if len(runes) > summarySentenceLimit {
		return string(runes[:summarySentenceLimit])
	}
	return text
}
