package postgres

import (
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// QA layout table names.
const (
	qaTextTable      = "qa_text"
	qaEmbeddingTable = "qa_embedding"
)

// minIVFLists is the floor for the ivfflat lists parameter.
const minIVFLists = 100

// ident quotes a table or index name.
func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// schemaStatements returns the idempotent DDL for a layout.
func schemaStatements(layout domain.StoreLayout, collection string, dimensions int) []string {
	stmts := []string{"CREATE EXTENSION IF NOT EXISTS vector"}

	if layout == domain.LayoutQA {
		return append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				big_category TEXT,
				mid_category TEXT,
				question TEXT NOT NULL,
				answer TEXT NOT NULL
			)`, ident(qaTextTable)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				qa_id BIGINT PRIMARY KEY REFERENCES %s(id) ON DELETE CASCADE,
				embedding VECTOR(%d) NOT NULL
			)`, ident(qaEmbeddingTable), ident(qaTextTable), dimensions),
		)
	}

	return append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding VECTOR(%d)
		)`, ident(collection), dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (metadata)`,
			ident(collection+"_metadata_idx"), ident(collection)),
	)
}

// embeddingTable is the table holding the vector column for a layout.
func embeddingTable(layout domain.StoreLayout, collection string) string {
	if layout == domain.LayoutQA {
		return qaEmbeddingTable
	}
	return collection
}

// rowTable is the table counted by Count for a layout.
func rowTable(layout domain.StoreLayout, collection string) string {
	if layout == domain.LayoutQA {
		return qaTextTable
	}
	return collection
}

// distanceOperator returns the pgvector operator for a metric.
func distanceOperator(m domain.DistanceMetric) string {
	if m == domain.MetricL2 {
		return "<->"
	}
	return "<=>"
}

// operatorClass returns the ivfflat operator class for a metric.
func operatorClass(m domain.DistanceMetric) string {
	if m == domain.MetricL2 {
		return "vector_l2_ops"
	}
	return "vector_cosine_ops"
}

// IVFFlatLists returns the lists parameter for an index over rows vectors:
// the square root of the row count, never below 100.
func IVFFlatLists(rows int) int {
	lists := int(math.Sqrt(float64(rows)))
	if lists < minIVFLists {
		return minIVFLists
	}
	return lists
}

// indexStatements returns the statements that rebuild the ANN index.
func indexStatements(layout domain.StoreLayout, collection string, metric domain.DistanceMetric, lists int) []string {
	table := embeddingTable(layout, collection)
	index := ident(table + "_embedding_idx")
	return []string{
		fmt.Sprintf("DROP INDEX IF EXISTS %s", index),
		fmt.Sprintf("CREATE INDEX %s ON %s USING ivfflat (embedding %s) WITH (lists = %d)",
			index, ident(table), operatorClass(metric), lists),
	}
}
