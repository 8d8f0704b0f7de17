package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/defilantech/modelsearch/internal/measurement"
	"github.com/defilantech/modelsearch/internal/record"
)

// snapshotEntry is the gob-serializable shape of an entry. measurement.RunConfigMeasurement
// carries unexported fields and an *constraint.Evaluator pointer that must not
// round-trip through a checkpoint (the evaluator is reinstalled by the
// orchestrator on restore), so checkpoints store the raw records needed to
// reconstruct each RCM rather than the RCM itself.
type snapshotEntry struct {
	Key          string
	ModelName    string
	Fingerprints []string
	MCMs         []snapshotMCM
	GPUData      map[string][]snapshotRecord
}

type snapshotMCM struct {
	VariantName string
	PerfParams  map[string]interface{}
	Records     []snapshotRecord
	Weights     map[string]float64
}

type snapshotRecord struct {
	Tag    string
	Value  float64
	Device string
}

// Snapshot is the gob-encodable form of the whole Store, written by
// Checkpoint and consumed by Restore.
type Snapshot struct {
	Entries []snapshotEntry
}

func toSnapshotRecords(recs []record.Record) []snapshotRecord {
	out := make([]snapshotRecord, len(recs))
	for i, r := range recs {
		out[i] = snapshotRecord{Tag: r.Tag(), Value: r.Value(), Device: r.Device()}
	}
	return out
}

func fromSnapshotRecords(recs []snapshotRecord) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, sr := range recs {
		r, err := record.FromTag(sr.Tag, sr.Value)
		if err != nil {
			continue
		}
		if sr.Device != "" {
			r = r.WithDevice(sr.Device)
		}
		out = append(out, r)
	}
	return out
}

// Checkpoint serializes the full Store state to path, writing to a
// sibling temp file first and renaming it into place so a crash mid-write
// never leaves a corrupt checkpoint behind.
func (s *Store) Checkpoint(path string) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Entries: make([]snapshotEntry, 0, len(s.byKey))}
	for _, e := range s.byKey {
		se := snapshotEntry{
			Key:       e.key,
			ModelName: e.modelName,
		}
		for fp := range e.fingerprints {
			se.Fingerprints = append(se.Fingerprints, fp)
		}
		for _, m := range e.rcm.ModelConfigMeasurements() {
			se.MCMs = append(se.MCMs, snapshotMCM{
				VariantName: m.VariantName,
				PerfParams:  m.PerfParams,
				Records:     toSnapshotRecords(m.Records()),
				Weights:     m.Weights(),
			})
		}
		se.GPUData = make(map[string][]snapshotRecord, len(e.rcm.GPUData()))
		for device, recs := range e.rcm.GPUData() {
			se.GPUData[device] = toSnapshotRecords(recs)
		}
		snap.Entries = append(snap.Entries, se)
	}
	return snap
}

// Restore replaces the Store's contents with the checkpoint at path. Any
// constraint evaluator must be reinstalled by the caller afterward via
// each RCM's SetEvaluator, since evaluators are not part of the
// checkpoint.
func (s *Store) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey = make(map[string]*entry, len(snap.Entries))
	s.passing = nil
	s.failing = nil

	for _, se := range snap.Entries {
		rcm := measurement.NewRCM(fromGPUSnapshot(se.GPUData))
		for _, sm := range se.MCMs {
			mcm := measurement.NewMCM(sm.VariantName, sm.PerfParams, fromSnapshotRecords(sm.Records))
			if len(sm.Weights) > 0 {
				mcm.SetMetricWeighting(sm.Weights)
			}
			rcm.AddModelConfigMeasurement(mcm)
		}

		fingerprints := make(map[string]bool, len(se.Fingerprints))
		for _, fp := range se.Fingerprints {
			fingerprints[fp] = true
		}
		e := &entry{key: se.Key, rcm: rcm, fingerprints: fingerprints, modelName: se.ModelName}
		s.byKey[se.Key] = e
		if rcm.IsPassingConstraints() {
			s.passing = append(s.passing, e)
		} else {
			s.failing = append(s.failing, e)
		}
	}
	s.resort()
	return nil
}

func fromGPUSnapshot(snap map[string][]snapshotRecord) map[string][]record.Record {
	out := make(map[string][]record.Record, len(snap))
	for device, recs := range snap {
		out[device] = fromSnapshotRecords(recs)
	}
	return out
}
