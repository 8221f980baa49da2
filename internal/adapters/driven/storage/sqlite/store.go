package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/druginfo/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultFileName is the database file created in the data directory.
const DefaultFileName = "druginfo.db"

// Config holds layout settings.
type Config struct {
	// Collection scopes chunk rows (chunks layout only).
	Collection string

	// Layout selects the table layout.
	Layout domain.StoreLayout

	// Dimensions is the embedding size every row must have.
	Dimensions int

	// Metric selects the distance function.
	Metric domain.DistanceMetric
}

// Store is a SQLite-backed vector store with exact nearest-neighbour search.
type Store struct {
	db   *sql.DB
	path string
	cfg  Config
}

// DefaultPath returns ~/.druginfo/data/druginfo.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".druginfo", "data", DefaultFileName), nil
}

// NewStore opens or creates the database at dbPath and applies migrations.
// If dbPath is empty, DefaultPath is used.
func NewStore(dbPath string, cfg Config) (*Store, error) {
	if cfg.Layout == "" {
		cfg.Layout = domain.LayoutChunks
	}
	if !cfg.Layout.IsValid() {
		return nil, fmt.Errorf("%w: layout %q", domain.ErrUnsupportedType, cfg.Layout)
	}
	if !cfg.Metric.IsValid() {
		cfg.Metric = domain.MetricCosine
	}
	if cfg.Collection == "" {
		cfg.Collection = "drug_info"
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w: %w", domain.ErrStoreUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath, cfg: cfg}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies every .up.sql file newer than the recorded version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_init.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// dimensionKey names the store_meta row recording the vector size.
func (s *Store) dimensionKey() string {
	if s.cfg.Layout == domain.LayoutQA {
		return "dimensions:qa"
	}
	return "dimensions:" + s.cfg.Collection
}

// checkDimensions records the configured size on first use and rejects a
// different size afterwards.
func (s *Store) checkDimensions() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", s.dimensionKey()).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)",
			s.dimensionKey(), strconv.Itoa(s.cfg.Dimensions))
		return err
	}
	if err != nil {
		return fmt.Errorf("reading store dimensions: %w", err)
	}

	got, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("stored dimensions %q: %w", stored, err)
	}
	if got != s.cfg.Dimensions {
		return &domain.DimensionMismatchError{Want: s.cfg.Dimensions, Got: got}
	}
	return nil
}

// Insert writes docs in a single transaction and assigns their IDs.
func (s *Store) Insert(ctx context.Context, docs []domain.Document) (int, error) {
	for i := range docs {
		if docs[i].Embedding == nil {
			continue
		}
		if err := domain.CheckDimension(docs[i].Embedding, s.cfg.Dimensions); err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
	}
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, len(docs))
	for i := range docs {
		id, err := s.insertOne(ctx, tx, docs[i])
		if err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("commit", err)
	}
	for i := range docs {
		docs[i].ID = ids[i]
	}
	return len(docs), nil
}

func (s *Store) insertOne(ctx context.Context, tx *sql.Tx, doc domain.Document) (int64, error) {
	if s.cfg.Layout == domain.LayoutQA {
		p := domain.QAPairFromDocument(doc)
		if p.Question == "" || p.Answer == "" {
			return 0, fmt.Errorf("%w: QA row needs question and answer metadata", domain.ErrInvalidInput)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO qa_text (big_category, mid_category, question, answer) VALUES (NULLIF(?, ''), NULLIF(?, ''), ?, ?)",
			p.BigCategory, p.MidCategory, p.Question, p.Answer)
		if err != nil {
			return 0, classify("insert qa_text", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		if doc.Embedding != nil {
			if _, err := tx.ExecContext(ctx, "INSERT INTO qa_embedding (qa_id, embedding) VALUES (?, ?)",
				id, float32SliceToBytes(doc.Embedding)); err != nil {
				return 0, classify("insert qa_embedding", err)
			}
		}
		return id, nil
	}

	meta := doc.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	var embedding any
	if doc.Embedding != nil {
		embedding = float32SliceToBytes(doc.Embedding)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO chunks (collection, content, metadata, embedding) VALUES (?, ?, ?, ?)",
		s.cfg.Collection, doc.Content, string(metaJSON), embedding)
	if err != nil {
		return 0, classify("insert chunk", err)
	}
	return res.LastInsertId()
}

// Nearest scans every embedded row matching filter and returns the k
// closest, ties broken by id.
func (s *Store) Nearest(
	ctx context.Context, vector []float32, k int, filter domain.MetadataFilter,
) ([]domain.ScoredDocument, error) {
	if err := domain.CheckDimension(vector, s.cfg.Dimensions); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.ScoredDocument{}, nil
	}

	var (
		docs []domain.Document
		err  error
	)
	if s.cfg.Layout == domain.LayoutQA {
		docs, err = s.queryQA(ctx, `SELECT t.id, t.big_category, t.mid_category, t.question, t.answer, e.embedding
			FROM qa_embedding e JOIN qa_text t ON t.id = e.qa_id ORDER BY t.id`)
	} else {
		docs, err = s.queryChunks(ctx, `SELECT id, content, metadata, embedding FROM chunks
			WHERE collection = ? AND embedding IS NOT NULL ORDER BY id`, s.cfg.Collection)
	}
	if err != nil {
		return nil, err
	}

	hits := make([]domain.ScoredDocument, 0, len(docs))
	for _, d := range docs {
		if !filter.Matches(d.Metadata) {
			continue
		}
		if len(d.Embedding) != s.cfg.Dimensions {
			return nil, fmt.Errorf("row %d: %w", d.ID,
				&domain.DimensionMismatchError{Want: s.cfg.Dimensions, Got: len(d.Embedding)})
		}
		hits = append(hits, domain.ScoredDocument{
			Document: d,
			Distance: s.cfg.Metric.Distance(vector, d.Embedding),
		})
	}

	// Rows arrive in id order, so a stable sort breaks ties by id.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// FindByProduct returns rows whose product name contains name,
// case-insensitively. QA pairs are matched on their question.
func (s *Store) FindByProduct(ctx context.Context, name string, k int) ([]domain.Document, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if k <= 0 || needle == "" {
		return []domain.Document{}, nil
	}

	var (
		docs []domain.Document
		err  error
	)
	if s.cfg.Layout == domain.LayoutQA {
		docs, err = s.queryQA(ctx, `SELECT t.id, t.big_category, t.mid_category, t.question, t.answer, e.embedding
			FROM qa_text t LEFT JOIN qa_embedding e ON e.qa_id = t.id ORDER BY t.id`)
	} else {
		docs, err = s.queryChunks(ctx, `SELECT id, content, metadata, embedding FROM chunks
			WHERE collection = ? ORDER BY id`, s.cfg.Collection)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Document, 0, min(k, len(docs)))
	for _, d := range docs {
		if len(out) >= k {
			break
		}
		haystack := d.ProductName()
		if s.cfg.Layout == domain.LayoutQA {
			haystack = d.Metadata[domain.MetaQuestion]
		}
		if strings.Contains(strings.ToLower(haystack), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	var err error
	if s.cfg.Layout == domain.LayoutQA {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM qa_text").Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", s.cfg.Collection).Scan(&n)
	}
	if err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// Dimension is the configured embedding size.
func (s *Store) Dimension() int {
	return s.cfg.Dimensions
}

// Metric is the distance metric used by Nearest.
func (s *Store) Metric() domain.DistanceMetric {
	return s.cfg.Metric
}

// Ping verifies the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query chunks", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			d         domain.Document
			metaJSON  string
			embedding []byte
		)
		if err := rows.Scan(&d.ID, &d.Content, &metaJSON, &embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
			return nil, fmt.Errorf("chunk %d metadata: %w", d.ID, err)
		}
		d.Embedding = bytesToFloat32Slice(embedding)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query chunks", err)
	}
	return docs, nil
}

func (s *Store) queryQA(ctx context.Context, query string, args ...any) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query qa", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			p         domain.QAPair
			big, mid  sql.NullString
			embedding []byte
		)
		if err := rows.Scan(&p.ID, &big, &mid, &p.Question, &p.Answer, &embedding); err != nil {
			return nil, fmt.Errorf("scanning qa pair: %w", err)
		}
		p.BigCategory = big.String
		p.MidCategory = mid.String
		d := p.Document()
		d.Embedding = bytesToFloat32Slice(embedding)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query qa", err)
	}
	return docs, nil
}

// classify marks errors from a closed or unreachable database.
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// float32SliceToBytes converts a []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
