package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not = [valid"), 0600))

	_, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
}

func TestConfigStore_NestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[store]
backend = "sqlite"
dimensions = 1024

[router]
bypass_retrieval = true
temperature = 0.5
fan_out = 8
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", store.GetString("store.backend"))
	assert.Equal(t, 1024, store.GetInt("store.dimensions"))
	assert.True(t, store.GetBool("router.bypass_retrieval"))
	assert.InDelta(t, 0.5, store.GetFloat("router.temperature"), 1e-9)
	assert.InDelta(t, 8.0, store.GetFloat("router.fan_out"), 1e-9)
}

func TestConfigStore_Getters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("i", 42))
	require.NoError(t, store.Set("i64", int64(7)))
	require.NoError(t, store.Set("f", 3.14))
	require.NoError(t, store.Set("b", true))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("s"), "hello"},
		{"string wrong type", store.GetString("i"), ""},
		{"string missing", store.GetString("missing"), ""},
		{"int", store.GetInt("i"), 42},
		{"int64", store.GetInt("i64"), 7},
		{"int wrong type", store.GetInt("s"), 0},
		{"float", store.GetFloat("f"), 3.14},
		{"float from int", store.GetFloat("i"), 42.0},
		{"float wrong type", store.GetFloat("b"), 0.0},
		{"bool", store.GetBool("b"), true},
		{"bool wrong type", store.GetBool("s"), false},
		{"bool missing", store.GetBool("missing"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_Set_EmptyKey(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("", "value"))
}

func TestConfigStore_SetDoesNotPersist(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestConfigStore_SaveReload_PreservesData(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("store.backend", "postgres"))
	require.NoError(t, store.Set("store.collection", "drug_info"))
	require.NoError(t, store.Set("router.top_n", 4))
	require.NoError(t, store.Set("router.temperature", 0.2))
	require.NoError(t, store.Set("version", "1"))
	require.NoError(t, store.Save())

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "postgres", reloaded.GetString("store.backend"))
	assert.Equal(t, "drug_info", reloaded.GetString("store.collection"))
	assert.Equal(t, 4, reloaded.GetInt("router.top_n"))
	assert.InDelta(t, 0.2, reloaded.GetFloat("router.temperature"), 1e-9)
	assert.Equal(t, "1", reloaded.GetString("version"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[store]")
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("key", "value"))
	require.NoError(t, store.Save())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_Load_DiscardsUnsaved(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("temp", "value"))

	require.NoError(t, store.Load())

	_, ok := store.Get("temp")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = store.Set("key", id)
			_ = store.GetInt("key")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("key")
	assert.True(t, ok)
}

func TestUnflattenMap(t *testing.T) {
	got := unflattenMap(map[string]any{
		"a.b":   1,
		"a.c.d": "x",
		"e":     true,
	})

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": 1,
			"c": map[string]any{"d": "x"},
		},
		"e": true,
	}, got)
}
