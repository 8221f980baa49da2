package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// Ensure Store implements the interfaces.
var (
	_ driven.VectorStore  = (*Store)(nil)
	_ driven.IndexManager = (*Store)(nil)
)

// Default connection settings.
const (
	DefaultConnectAttempts = 5
	DefaultConnectDelay    = 2 * time.Second
)

// Config holds connection and layout settings.
type Config struct {
	// DSN is a postgres:// URL or libpq key/value string.
	DSN string

	// Collection is the chunk table name (chunks layout only).
	Collection string

	// Layout selects the table layout.
	Layout domain.StoreLayout

	// Dimensions is the VECTOR(D) column size.
	Dimensions int

	// Metric selects the distance operator.
	Metric domain.DistanceMetric

	// ConnectAttempts bounds start-up connection attempts (default: 5).
	ConnectAttempts int

	// ConnectDelay is the pause between attempts (default: 2s).
	ConnectDelay time.Duration

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
}

// Store is a pgvector-backed vector store.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Open connects, retrying while the server is unreachable, and creates the
// extension and tables for the configured layout.
func Open(ctx context.Context, cfg Config) (*Store, error) {
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
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = DefaultConnectAttempts
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = DefaultConnectDelay
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DSN: %w", domain.ErrInvalidInput, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := connect(ctx, poolCfg, cfg.ConnectAttempts, cfg.ConnectDelay)
	if err != nil {
		return nil, err
	}

	s := &Store{pool: pool, cfg: cfg}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Debug("postgres store ready: layout=%s table=%s dim=%d metric=%s",
		cfg.Layout, rowTable(cfg.Layout, cfg.Collection), cfg.Dimensions, cfg.Metric)
	return s, nil
}

// connect creates a pool and pings it, retrying with a constant delay.
func connect(ctx context.Context, poolCfg *pgxpool.Config, attempts int, delay time.Duration) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	op := func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolCfg.Copy())
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("postgres: connect failed: %v (retrying in %s)", err, wait)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: connect after %d attempts: %w", domain.ErrStoreUnavailable, attempts, err)
	}
	return pool, nil
}

// migrate applies the layout DDL and verifies the vector column size.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.cfg.Layout, s.cfg.Collection, s.cfg.Dimensions) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return classify("create schema", err)
		}
	}

	var typmod int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		ident(embeddingTable(s.cfg.Layout, s.cfg.Collection)),
	).Scan(&typmod)
	if err != nil {
		return classify("inspect embedding column", err)
	}
	if typmod > 0 && typmod != s.cfg.Dimensions {
		return &domain.DimensionMismatchError{Want: s.cfg.Dimensions, Got: typmod}
	}
	return nil
}

// acquire takes a pooled connection for one call.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return conn, nil
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

	batch := &pgx.Batch{}
	for i := range docs {
		if err := s.queueInsert(batch, docs[i]); err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, classify("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, len(docs))
	results := tx.SendBatch(ctx, batch)
	for i := range docs {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			_ = results.Close()
			return 0, classify(fmt.Sprintf("insert document %d", i), err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, classify("insert", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, classify("commit", err)
	}

	for i := range docs {
		docs[i].ID = ids[i]
	}
	return len(docs), nil
}

// queueInsert adds the insert statement for one document to batch.
func (s *Store) queueInsert(batch *pgx.Batch, doc domain.Document) error {
	var vec any
	if doc.Embedding != nil {
		vec = pgvector.NewVector(doc.Embedding)
	}

	if s.cfg.Layout == domain.LayoutQA {
		p := domain.QAPairFromDocument(doc)
		if p.Question == "" || p.Answer == "" {
			return fmt.Errorf("%w: QA row needs question and answer metadata", domain.ErrInvalidInput)
		}
		batch.Queue(insertQASQL(), p.BigCategory, p.MidCategory, p.Question, p.Answer, vec)
		return nil
	}

	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	batch.Queue(insertChunkSQL(s.cfg.Collection), doc.Content, meta, vec)
	return nil
}

// Nearest returns up to k rows ordered by distance then id.
func (s *Store) Nearest(
	ctx context.Context, vector []float32, k int, filter domain.MetadataFilter,
) ([]domain.ScoredDocument, error) {
	if err := domain.CheckDimension(vector, s.cfg.Dimensions); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.ScoredDocument{}, nil
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	if s.cfg.Layout == domain.LayoutQA {
		return s.nearestQA(ctx, conn, vector, k, filter)
	}

	args := []any{pgvector.NewVector(vector)}
	if len(filter) > 0 {
		raw, err := encodeMetadata(filter)
		if err != nil {
			return nil, err
		}
		args = append(args, raw)
	}
	args = append(args, k)

	rows, err := conn.Query(ctx, nearestChunksSQL(s.cfg.Collection, s.cfg.Metric, len(filter) > 0), args...)
	if err != nil {
		return nil, classify("nearest", err)
	}
	defer rows.Close()

	hits := []domain.ScoredDocument{}
	for rows.Next() {
		var (
			doc  domain.Document
			meta []byte
			dist float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &dist); err != nil {
			return nil, classify("scan", err)
		}
		if doc.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		hits = append(hits, domain.ScoredDocument{Document: doc, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("nearest", err)
	}
	return hits, nil
}

func (s *Store) nearestQA(
	ctx context.Context, conn *pgxpool.Conn, vector []float32, k int, filter domain.MetadataFilter,
) ([]domain.ScoredDocument, error) {
	big, mid, ok := qaFilterArgs(filter)
	if !ok {
		return []domain.ScoredDocument{}, nil
	}

	rows, err := conn.Query(ctx, nearestQASQL(s.cfg.Metric), pgvector.NewVector(vector), big, mid, k)
	if err != nil {
		return nil, classify("nearest", err)
	}
	defer rows.Close()

	hits := []domain.ScoredDocument{}
	for rows.Next() {
		var dist float64
		p, err := scanQA(rows, &dist)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.ScoredDocument{Document: p.Document(), Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("nearest", err)
	}
	return hits, nil
}

// scanQA reads a qa_text row, plus the distance column when dist is set.
func scanQA(rows pgx.Rows, dist *float64) (domain.QAPair, error) {
	var (
		p        domain.QAPair
		big, mid *string
	)
	dest := []any{&p.ID, &big, &mid, &p.Question, &p.Answer}
	if dist != nil {
		dest = append(dest, dist)
	}
	if err := rows.Scan(dest...); err != nil {
		return p, classify("scan", err)
	}
	if big != nil {
		p.BigCategory = *big
	}
	if mid != nil {
		p.MidCategory = *mid
	}
	return p, nil
}

// FindByProduct returns rows whose product name contains name.
// QA pairs carry no product, so the question text is matched instead.
func (s *Store) FindByProduct(ctx context.Context, name string, k int) ([]domain.Document, error) {
	if k <= 0 || strings.TrimSpace(name) == "" {
		return []domain.Document{}, nil
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	query := productChunksSQL(s.cfg.Collection)
	if s.cfg.Layout == domain.LayoutQA {
		query = productQASQL()
	}
	rows, err := conn.Query(ctx, query, likePattern(name), k)
	if err != nil {
		return nil, classify("find by product", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		if s.cfg.Layout == domain.LayoutQA {
			p, err := scanQA(rows, nil)
			if err != nil {
				return nil, err
			}
			docs = append(docs, p.Document())
			continue
		}

		var (
			doc  domain.Document
			meta []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta); err != nil {
			return nil, classify("scan", err)
		}
		if doc.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find by product", err)
	}
	return docs, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var n int
	query := fmt.Sprintf("SELECT count(*) FROM %s", ident(rowTable(s.cfg.Layout, s.cfg.Collection)))
	if err := conn.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, classify("count", err)
	}
	return n, nil
}

// RebuildIndex drops and recreates the ivfflat index sized to the row count.
func (s *Store) RebuildIndex(ctx context.Context) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	lists := IVFFlatLists(n)

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, stmt := range indexStatements(s.cfg.Layout, s.cfg.Collection, s.cfg.Metric, lists) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return classify("rebuild index", err)
		}
	}
	logger.Info("vector index rebuilt: rows=%d lists=%d metric=%s", n, lists, s.cfg.Metric)
	return nil
}

// Dimension is the configured embedding size.
func (s *Store) Dimension() int {
	return s.cfg.Dimensions
}

// Metric is the distance metric used by Nearest.
func (s *Store) Metric() domain.DistanceMetric {
	return s.cfg.Metric
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// classify wraps a driver error. Server-side errors keep their SQLSTATE;
// pgvector dimension complaints become ErrDimensionMismatch; anything
// else means the server could not be reached.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.Contains(pgErr.Message, "dimensions") {
			return fmt.Errorf("%s: %w: %s", op, domain.ErrDimensionMismatch, pgErr.Message)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
