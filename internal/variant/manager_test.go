package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVariantNameDefaultCombo(t *testing.T) {
	m := NewManager()
	assert.Equal(t, "llama3_config_default", m.GetVariantName("llama3", nil))
	assert.Equal(t, "llama3_config_default", m.GetVariantName("llama3", map[string]interface{}{}))
}

func TestGetVariantNameDedup(t *testing.T) {
	m := NewManager()
	combo := map[string]interface{}{"max_batch_size": 8, "instance_group_count": 2}

	first := m.GetVariantName("llama3", combo)
	second := m.GetVariantName("llama3", combo)
	assert.Equal(t, first, second)
	assert.Equal(t, "llama3_config_0", first)
}

func TestGetVariantNameOrderInsensitive(t *testing.T) {
	m := NewManager()
	a := map[string]interface{}{"max_batch_size": 8, "instance_group_count": 2}
	b := map[string]interface{}{"instance_group_count": 2, "max_batch_size": 8}

	assert.Equal(t, m.GetVariantName("llama3", a), m.GetVariantName("llama3", b))
}

func TestGetVariantNameDistinctCombosDistinctNames(t *testing.T) {
	m := NewManager()
	a := map[string]interface{}{"max_batch_size": 8}
	b := map[string]interface{}{"max_batch_size": 16}

	nameA := m.GetVariantName("llama3", a)
	nameB := m.GetVariantName("llama3", b)
	assert.NotEqual(t, nameA, nameB)
}

func TestGetVariantNameIndependentPerBaseModel(t *testing.T) {
	m := NewManager()
	combo := map[string]interface{}{"max_batch_size": 8}

	nameA := m.GetVariantName("llama3", combo)
	nameB := m.GetVariantName("mistral", combo)
	// Same combo, different base models: names differ by base model prefix
	// but both start fresh at index 0.
	assert.Equal(t, "llama3_config_0", nameA)
	assert.Equal(t, "mistral_config_0", nameB)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := NewManager()
	combo := map[string]interface{}{"max_batch_size": 8}
	name := m.GetVariantName("llama3", combo)

	snap := m.Snapshot()

	restored := NewManager()
	restored.Restore(snap)

	assert.Equal(t, name, restored.GetVariantName("llama3", combo))

	// A new combo after restore continues the index rather than restarting.
	next := restored.GetVariantName("llama3", map[string]interface{}{"max_batch_size": 16})
	assert.Equal(t, "llama3_config_1", next)
}

func TestCanonicalKeyHandlesNestedStructures(t *testing.T) {
	a := map[string]interface{}{
		"parameters": map[string]interface{}{"count": []interface{}{1, 2, 4}},
	}
	b := map[string]interface{}{
		"parameters": map[string]interface{}{"count": []interface{}{1, 2, 4}},
	}
	assert.Equal(t, canonicalKey(a), canonicalKey(b))
}
