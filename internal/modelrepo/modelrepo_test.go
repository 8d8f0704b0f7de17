package modelrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteVariantOverlaysComboOntoBaseConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m", "config.json"), []byte(`{"max_batch_size":1,"name":"m"}`), 0o644))

	w := NewFSWriter(root)
	err := w.WriteVariant(context.Background(), "m", "m_config_0", map[string]interface{}{
		"max_batch_size":                4,
		"dynamic_batching.max_queue_delay_microseconds": 100,
	})
	require.NoError(t, err)

	got, err := ReadVariantConfig(root, "m", "m_config_0")
	require.NoError(t, err)
	assert.Equal(t, "m", got["name"])
	assert.EqualValues(t, 4, got["max_batch_size"])
	db, ok := got["dynamic_batching"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 100, db["max_queue_delay_microseconds"])
}

func TestWriteVariantWithMissingBaseConfigStartsFromEmptyDocument(t *testing.T) {
	root := t.TempDir()

	w := NewFSWriter(root)
	err := w.WriteVariant(context.Background(), "newmodel", "newmodel_config_default", nil)
	require.NoError(t, err)

	got, err := ReadVariantConfig(root, "newmodel", "newmodel_config_default")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteVariantCachesBaseConfigAcrossVariants(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m", "config.json"), []byte(`{"instance_count":1}`), 0o644))

	w := NewFSWriter(root)
	require.NoError(t, w.WriteVariant(context.Background(), "m", "m_config_0", map[string]interface{}{"instance_count": 2}))

	require.NoError(t, os.WriteFile(filepath.Join(root, "m", "config.json"), []byte(`{"instance_count":999}`), 0o644))
	require.NoError(t, w.WriteVariant(context.Background(), "m", "m_config_1", map[string]interface{}{"max_batch_size": 3}))

	got, err := ReadVariantConfig(root, "m", "m_config_1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got["instance_count"])
}

func TestWriteVariantRejectsInvalidBaseConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m", "config.json"), []byte(`not json`), 0o644))

	w := NewFSWriter(root)
	err := w.WriteVariant(context.Background(), "m", "m_config_0", map[string]interface{}{"a": 1})
	assert.Error(t, err)
}

func TestReadBaseConfigReturnsParsedDocument(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m", "config.json"), []byte(`{"max_batch_size":8}`), 0o644))

	got, err := ReadBaseConfig(root, "m")
	require.NoError(t, err)
	assert.EqualValues(t, 8, got["max_batch_size"])
}

func TestReadBaseConfigReturnsEmptyMapWhenMissing(t *testing.T) {
	root := t.TempDir()

	got, err := ReadBaseConfig(root, "newmodel")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadBaseConfigRejectsInvalidJSON(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "m"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "m", "config.json"), []byte(`not json`), 0o644))

	_, err := ReadBaseConfig(root, "m")
	assert.Error(t, err)
}
