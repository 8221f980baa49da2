// Package postgres implements the vector store on PostgreSQL with the
// pgvector extension.
//
// Two table layouts are supported. The chunks layout keeps one row per
// embedded chunk in a table named after the collection:
//
//	<collection>(id BIGSERIAL, content TEXT, metadata JSONB, embedding VECTOR(D))
//
// The qa layout splits question/answer pairs from their embeddings:
//
//	qa_text(id, big_category, mid_category, question, answer)
//	qa_embedding(qa_id, embedding)
//
// Connections are taken from a pgxpool per call and released before the
// call returns.
package postgres
