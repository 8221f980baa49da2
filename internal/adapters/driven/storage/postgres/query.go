package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// tieSlack widens the index scan so rows tied at the k-th distance can
// still be ordered by id.
const tieSlack = 8

// nearestChunksSQL selects the k closest chunk rows. Parameters: $1 the
// query vector, $2 the jsonb filter (when withFilter), then the limit. The
// inner query orders by the distance expression alone so an ivfflat index
// can serve it; the outer query breaks ties by id.
func nearestChunksSQL(collection string, metric domain.DistanceMetric, withFilter bool) string {
	op := distanceOperator(metric)
	limit := "$2"
	filter := ""
	if withFilter {
		filter = " AND metadata @> $2::jsonb"
		limit = "$3"
	}
	return fmt.Sprintf(`SELECT id, content, metadata, distance FROM (
		SELECT id, content, metadata, embedding %[1]s $1 AS distance FROM %[2]s
		WHERE embedding IS NOT NULL%[3]s
		ORDER BY embedding %[1]s $1 LIMIT %[4]s + %[5]d
	) AS nearest ORDER BY distance, id LIMIT %[4]s`,
		op, ident(collection), filter, limit, tieSlack)
}

// nearestQASQL selects the k closest QA pairs. Parameters: $1 the query
// vector, $2 big_category or NULL, $3 mid_category or NULL, $4 the limit.
func nearestQASQL(metric domain.DistanceMetric) string {
	return fmt.Sprintf(`SELECT id, big_category, mid_category, question, answer, distance FROM (
		SELECT t.id, t.big_category, t.mid_category, t.question, t.answer, e.embedding %[1]s $1 AS distance
		FROM %[2]s e JOIN %[3]s t ON t.id = e.qa_id
		WHERE ($2::text IS NULL OR t.big_category = $2) AND ($3::text IS NULL OR t.mid_category = $3)
		ORDER BY e.embedding %[1]s $1 LIMIT $4 + %[4]d
	) AS nearest ORDER BY distance, id LIMIT $4`,
		distanceOperator(metric), ident(qaEmbeddingTable), ident(qaTextTable), tieSlack)
}

// insertChunkSQL inserts one chunk and returns its id.
func insertChunkSQL(collection string) string {
	return fmt.Sprintf("INSERT INTO %s (content, metadata, embedding) VALUES ($1, $2::jsonb, $3) RETURNING id",
		ident(collection))
}

// insertQASQL inserts a pair and, when $5 is not NULL, its embedding, and
// returns the pair id.
func insertQASQL() string {
	return fmt.Sprintf(`WITH t AS (
			INSERT INTO %s (big_category, mid_category, question, answer)
			VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4) RETURNING id
		), e AS (
			INSERT INTO %s (qa_id, embedding) SELECT id, $5::vector FROM t WHERE $5::vector IS NOT NULL
		)
		SELECT id FROM t`, ident(qaTextTable), ident(qaEmbeddingTable))
}

// productChunksSQL matches the product name across the known metadata keys.
func productChunksSQL(collection string) string {
	return fmt.Sprintf(`SELECT id, content, metadata FROM %s
		WHERE COALESCE(metadata->>'%s', metadata->>'product_name', metadata->>'title', metadata->>'product', '') ILIKE $1
		ORDER BY id LIMIT $2`, ident(collection), domain.MetaProductName)
}

// productQASQL matches QA pairs whose question mentions the name.
func productQASQL() string {
	return fmt.Sprintf(`SELECT id, big_category, mid_category, question, answer FROM %s
		WHERE question ILIKE $1 ORDER BY id LIMIT $2`, ident(qaTextTable))
}

// likePattern wraps s for a substring ILIKE match, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// qaFilterArgs maps a metadata filter onto the qa_text category columns.
// ok is false when the filter names a key the layout cannot match.
func qaFilterArgs(filter domain.MetadataFilter) (big, mid any, ok bool) {
	for k, v := range filter {
		switch k {
		case domain.MetaBigCategory:
			big = v
		case domain.MetaMidCategory:
			mid = v
		default:
			return nil, nil, false
		}
	}
	return big, mid, true
}

// encodeMetadata renders metadata as a JSON object, never null.
func encodeMetadata(meta map[string]string) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

// decodeMetadata parses a jsonb object. Non-string values are rendered
// with their JSON text.
func decodeMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	meta := make(map[string]string, len(values))
	for k, v := range values {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			meta[k] = s
			continue
		}
		meta[k] = string(v)
	}
	return meta, nil
}
