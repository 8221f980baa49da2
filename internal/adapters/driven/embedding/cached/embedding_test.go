package cached

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls  int
	texts  []string
	err    error
	closed bool
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts = append(c.texts, text)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int              { return 1 }
func (c *countingEmbedder) ModelName() string            { return "counting" }
func (c *countingEmbedder) Ping(_ context.Context) error { return nil }
func (c *countingEmbedder) Close() error                 { c.closed = true; return nil }

func TestEmbed_CachesRepeatedText(t *testing.T) {
	inner := &countingEmbedder{}
	svc, err := New(inner, 4)
	require.NoError(t, err)

	a, err := svc.Embed(context.Background(), "타이레놀")
	require.NoError(t, err)
	b, err := svc.Embed(context.Background(), "타이레놀")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
}

func TestEmbedBatch_OnlyMissesReachInner(t *testing.T) {
	inner := &countingEmbedder{}
	svc, err := New(inner, 0)
	require.NoError(t, err)
	_, err = svc.Embed(context.Background(), "b")
	require.NoError(t, err)
	inner.texts = nil

	got, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "ccc"})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ccc"}, inner.texts)
	assert.Equal(t, [][]float32{{1}, {1}, {3}}, got)
	assert.Equal(t, 3, svc.Len())
}

func TestEmbed_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	svc, err := New(inner, 4)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 0, svc.Len())
}

func TestEmbed_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingEmbedder{}
	svc, err := New(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "a"} {
		_, err := svc.Embed(ctx, q)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, inner.calls)
}

func TestClose_ClosesInner(t *testing.T) {
	inner := &countingEmbedder{}
	svc, err := New(inner, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	assert.True(t, inner.closed)
}
