// Package sqlite provides an embedded vector store on SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Embeddings are stored as
// little-endian float32 blobs and searched by exact scan, which suits corpora
// of a few hundred thousand chunks or fewer.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Chunks of every collection share one table keyed by a collection column;
// the QA layout uses the qa_text and qa_embedding tables.
//
// # Data Location
//
// By default, the database is stored at ~/.druginfo/data/druginfo.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
