/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/record"
	"github.com/defilantech/modelsearch/internal/store"
)

func TestReportCommandRequiresCheckpoint(t *testing.T) {
	cmd := NewReportCommand()
	cmd.SetArgs([]string{"--markdown", filepath.Join(t.TempDir(), "out.md")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--checkpoint")
}

func TestReportCommandRequiresAnOutputFormat(t *testing.T) {
	cmd := NewReportCommand()
	cmd.SetArgs([]string{"--checkpoint", filepath.Join(t.TempDir(), "checkpoint.bin")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--markdown")
}

func TestReportCommandRendersFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	checkpointPath := filepath.Join(dir, "checkpoint.bin")
	mdPath := filepath.Join(dir, "report.md")

	st := store.New()
	rcm := measurement.NewRCM(nil)
	rcm.AddModelConfigMeasurement(measurement.NewMCM("m_config_0", nil, []record.Record{
		record.Throughput(50), record.LatencyP99(30),
	}))
	st.Add(rcm.VariantsKey(), "run-1", "m", rcm)
	require.NoError(t, st.Checkpoint(checkpointPath))

	cmd := NewReportCommand()
	cmd.SetArgs([]string{"--checkpoint", checkpointPath, "--markdown", mdPath})
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, mdPath)
}
