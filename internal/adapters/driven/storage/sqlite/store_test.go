package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()

	if cfg.Dimensions == 0 {
		cfg.Dimensions = 3
	}
	store, err := NewStore(filepath.Join(t.TempDir(), DefaultFileName), cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func labelChunk(product, docType string, vec ...float32) domain.Document {
	return domain.Document{
		Content: product + " " + docType,
		Metadata: map[string]string{
			domain.MetaProductName: product,
			domain.MetaDocType:     docType,
		},
		Embedding: vec,
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := NewStore(filepath.Join(dir, "a.db"), Config{Dimensions: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewStore(filepath.Join(dir, "b.db"), Config{Dimensions: 3, Layout: "rows"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestNewStore_CreatesNestedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x", "y", "store.db")

	store, err := NewStore(path, Config{Dimensions: 3})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.Path())
	assert.Equal(t, 3, store.Dimension())
	assert.Equal(t, domain.MetricCosine, store.Metric())
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	store, err := NewStore(path, Config{Dimensions: 3})
	require.NoError(t, err)
	_, err = store.Insert(ctx, []domain.Document{labelChunk("타이레놀", "content", 1, 0, 0)})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, Config{Dimensions: 3})
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewStore_DimensionChangeRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	store, err := NewStore(path, Config{Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewStore(path, Config{Dimensions: 4})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	other, err := NewStore(path, Config{Dimensions: 4, Collection: "other"})
	require.NoError(t, err, "collections record their own size")
	require.NoError(t, other.Close())
}

func TestStore_InsertAssignsIDs(t *testing.T) {
	store := setupTestStore(t, Config{})
	ctx := context.Background()

	docs := []domain.Document{
		labelChunk("타이레놀", "content", 1, 0, 0),
		labelChunk("게보린", "content", 0, 1, 0),
	}
	n, err := store.Insert(ctx, docs)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Positive(t, docs[0].ID)
	assert.Greater(t, docs[1].ID, docs[0].ID)
}

func TestStore_InsertDimensionMismatchWritesNothing(t *testing.T) {
	store := setupTestStore(t, Config{})
	ctx := context.Background()

	_, err := store.Insert(ctx, []domain.Document{
		labelChunk("a", "content", 1, 0, 0),
		labelChunk("b", "content", 1, 0),
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Nearest(t *testing.T) {
	store := setupTestStore(t, Config{})
	ctx := context.Background()

	docs := []domain.Document{
		labelChunk("타이레놀", "content", 1, 0, 0),
		labelChunk("게보린", "content", 0, 1, 0),
		labelChunk("타이레놀", "summary", 1, 0, 0),
		{Content: "unembedded", Metadata: map[string]string{domain.MetaProductName: "x"}},
	}
	_, err := store.Insert(ctx, docs)
	require.NoError(t, err)

	t.Run("orders by distance then id", func(t *testing.T) {
		hits, err := store.Nearest(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, docs[0].ID, hits[0].Document.ID)
		assert.Equal(t, docs[2].ID, hits[1].Document.ID)
		assert.Equal(t, docs[1].ID, hits[2].Document.ID)
		assert.InDelta(t, 0, hits[0].Distance, 1e-6)
		assert.InDelta(t, 1, hits[2].Distance, 1e-6)
	})

	t.Run("limits to k", func(t *testing.T) {
		hits, err := store.Nearest(ctx, []float32{1, 0, 0}, 1, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("filters metadata", func(t *testing.T) {
		hits, err := store.Nearest(ctx, []float32{1, 0, 0}, 10, domain.MetadataFilter{domain.MetaDocType: "summary"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "타이레놀 summary", hits[0].Document.Content)
	})

	t.Run("rejects wrong query size", func(t *testing.T) {
		_, err := store.Nearest(ctx, []float32{1, 0}, 10, nil)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("zero k", func(t *testing.T) {
		hits, err := store.Nearest(ctx, []float32{1, 0, 0}, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestStore_Nearest_L2(t *testing.T) {
	store := setupTestStore(t, Config{Metric: domain.MetricL2})
	ctx := context.Background()

	_, err := store.Insert(ctx, []domain.Document{
		labelChunk("far", "content", 3, 4, 0),
		labelChunk("near", "content", 1, 0, 0),
	})
	require.NoError(t, err)

	hits, err := store.Nearest(ctx, []float32{0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Document.ProductName())
	assert.InDelta(t, 5, hits[1].Distance, 1e-6)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	a, err := NewStore(path, Config{Dimensions: 3, Collection: "a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStore(path, Config{Dimensions: 3, Collection: "b"})
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Insert(ctx, []domain.Document{labelChunk("타이레놀", "content", 1, 0, 0)})
	require.NoError(t, err)

	hits, err := b.Nearest(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_FindByProduct(t *testing.T) {
	store := setupTestStore(t, Config{})
	ctx := context.Background()

	_, err := store.Insert(ctx, []domain.Document{
		labelChunk("타이레놀정500mg", "content", 1, 0, 0),
		labelChunk("게보린", "content", 0, 1, 0),
		labelChunk("어린이타이레놀", "meta", 0, 0, 1),
	})
	require.NoError(t, err)

	found, err := store.FindByProduct(ctx, "타이레놀", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "타이레놀정500mg", found[0].ProductName())

	found, err = store.FindByProduct(ctx, "타이레놀", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = store.FindByProduct(ctx, "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStore_QALayout(t *testing.T) {
	store := setupTestStore(t, Config{Layout: domain.LayoutQA})
	ctx := context.Background()

	first := domain.QAPair{BigCategory: "복약", MidCategory: "해열", Question: "타이레놀은 하루 몇 번?", Answer: "4~6시간 간격"}.Document()
	first.Embedding = []float32{1, 0, 0}
	second := domain.QAPair{Question: "시럽 보관법?", Answer: "실온 보관"}.Document()
	second.Embedding = []float32{0, 1, 0}

	n, err := store.Insert(ctx, []domain.Document{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := store.Nearest(ctx, []float32{0, 1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Q: 시럽 보관법?\nA: 실온 보관", hits[0].Document.Content)

	hits, err = store.Nearest(ctx, []float32{0, 1, 0}, 5, domain.MetadataFilter{domain.MetaBigCategory: "복약"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "해열", hits[0].Document.Metadata[domain.MetaMidCategory])

	found, err := store.FindByProduct(ctx, "타이레놀", 5)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = store.Insert(ctx, []domain.Document{{Metadata: map[string]string{domain.MetaQuestion: "q"}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "store.db"), Config{Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreUnavailable)

	_, err = store.Nearest(ctx, []float32{1, 0, 0}, 3, nil)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestFloat32Codec(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
