package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/record"
	"github.com/defilantech/modelsearch/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New()

	good := measurement.NewRCM(nil)
	good.AddModelConfigMeasurement(measurement.NewMCM("m_config_0", nil, []record.Record{
		record.Throughput(100), record.LatencyP99(20),
	}))
	st.Add(good.VariantsKey(), "run-1", "m", good)

	bad := measurement.NewRCM(nil)
	bad.AddModelConfigMeasurement(measurement.NewMCM("m_config_1", nil, []record.Record{
		record.Throughput(10), record.LatencyP99(500),
	}))
	st.Add(bad.VariantsKey(), "run-2", "m", bad)

	return st
}

func TestWriteMarkdownProducesPerModelSections(t *testing.T) {
	st := seededStore(t)
	w := New(st, 3)

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, w.WriteMarkdown(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "## m")
	assert.Contains(t, content, "Configs measured")
	assert.Contains(t, content, "m_config_0")
}

func TestWriteJSONProducesStatisticsAndTop(t *testing.T) {
	st := seededStore(t)
	w := New(st, 1)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, w.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc summaryDoc
	require.NoError(t, json.Unmarshal(data, &doc))

	entry, ok := doc.Models["m"]
	require.True(t, ok)
	assert.Equal(t, 2, entry.Statistics.Total)
	require.Len(t, entry.Top, 1)
	assert.Equal(t, "m_config_0", entry.Top[0].Variants)
	assert.Equal(t, 100.0, entry.Top[0].Throughput)
}

func TestWriteMarkdownHandlesEmptyStore(t *testing.T) {
	st := store.New()
	_ = st // ModelNames() is empty, so the header-only report is valid output
	w := New(st, 3)

	path := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, w.WriteMarkdown(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Model Configuration Sweep Report")
}
