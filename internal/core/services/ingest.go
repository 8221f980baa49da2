package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
	"github.com/custodia-labs/druginfo/internal/logger"
	"github.com/custodia-labs/druginfo/internal/postprocessors/chunker"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Supported ingest formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// productKeys are the record fields accepted as the product name.
var productKeys = []string{domain.MetaProductName, "product_name", "title", "product"}

// IngestService chunks drug labels or QA pairs and stores them.
type IngestService struct {
	docs    *DocumentStore
	chunker *chunker.Processor
	layout  domain.StoreLayout
}

// NewIngestService creates an ingest service for the given store layout.
func NewIngestService(docs *DocumentStore, chunk *chunker.Processor, layout domain.StoreLayout) *IngestService {
	if chunk == nil {
		chunk = chunker.New()
	}
	if !layout.IsValid() {
		layout = domain.LayoutChunks
	}
	return &IngestService{docs: docs, chunker: chunk, layout: layout}
}

// IngestLabels chunks labels and stores every resulting document.
func (s *IngestService) IngestLabels(ctx context.Context, labels []domain.DrugLabel) (int, error) {
	logger.Section("Ingest Labels")

	var docs []domain.Document
	for _, label := range labels {
		produced := s.chunker.Process(label)
		if len(produced) == 0 {
			logger.Warn("skipping label without product name")
			continue
		}
		docs = append(docs, produced...)
	}
	logger.Debug("Labels: %d, documents: %d", len(labels), len(docs))

	return s.docs.InsertBatch(ctx, docs)
}

// IngestQAPairs stores one document per QA pair.
func (s *IngestService) IngestQAPairs(ctx context.Context, pairs []domain.QAPair) (int, error) {
	logger.Section("Ingest QA Pairs")

	docs := make([]domain.Document, 0, len(pairs))
	for i, p := range pairs {
		if strings.TrimSpace(p.Question) == "" || strings.TrimSpace(p.Answer) == "" {
			return 0, fmt.Errorf("qa pair %d: question and answer required: %w", i, domain.ErrInvalidInput)
		}
		docs = append(docs, p.Document())
	}
	return s.docs.InsertBatch(ctx, docs)
}

// IngestReader parses records in format and stores them according to the layout.
func (s *IngestService) IngestReader(ctx context.Context, r io.Reader, format string) (int, error) {
	records, err := readRecords(r, format)
	if err != nil {
		return 0, err
	}

	if s.layout == domain.LayoutQA {
		pairs := make([]domain.QAPair, len(records))
		for i, rec := range records {
			pairs[i] = domain.QAPair{
				BigCategory: rec[domain.MetaBigCategory],
				MidCategory: rec[domain.MetaMidCategory],
				Question:    rec[domain.MetaQuestion],
				Answer:      rec[domain.MetaAnswer],
			}
		}
		return s.IngestQAPairs(ctx, pairs)
	}

	labels := make([]domain.DrugLabel, len(records))
	for i, rec := range records {
		labels[i] = labelFromRecord(rec)
	}
	return s.IngestLabels(ctx, labels)
}

// labelFromRecord treats every field other than the product and company
// names as a label section.
func labelFromRecord(rec map[string]string) domain.DrugLabel {
	label := domain.DrugLabel{Sections: make(map[string]string)}
	consumed := map[string]bool{domain.MetaCompany: true}
	for _, key := range productKeys {
		consumed[key] = true
		if label.ProductName == "" {
			label.ProductName = strings.TrimSpace(rec[key])
		}
	}
	label.Company = strings.TrimSpace(rec[domain.MetaCompany])

	for k, v := range rec {
		if consumed[k] || strings.TrimSpace(v) == "" {
			continue
		}
		label.Sections[k] = v
	}
	return label
}

func readRecords(r io.Reader, format string) ([]map[string]string, error) {
	switch strings.ToLower(format) {
	case FormatJSONL, "json", "ndjson":
		return readJSONL(r)
	case FormatCSV:
		return readCSV(r)
	default:
		return nil, fmt.Errorf("ingest format %q: %w", format, domain.ErrUnsupportedType)
	}
}

func readJSONL(r io.Reader) ([]map[string]string, error) {
	var records []map[string]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, domain.ErrInvalidInput, err)
		}
		rec := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
			case string:
				rec[k] = val
			default:
				rec[k] = fmt.Sprint(val)
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return records, nil
}

func readCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rec := make(map[string]string, len(header))
		for i, v := range row {
			if i < len(header) {
				rec[header[i]] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
