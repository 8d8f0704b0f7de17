// Package modelrepo implements the model repository I/O reference adapter
// (§11.3): a filesystem orchestrator.ModelRepoWriter that overlays a
// variant's param combo onto a model's base JSON config document and
// writes the result into a per-variant directory.
//
// Grounded on claraverse-space-ClaraCore/proxy/proxymanager.go's use of
// github.com/tidwall/gjson + github.com/tidwall/sjson for targeted JSON
// document surgery (there: rewriting/stripping fields of a proxied request
// body; here: overlaying combo keys onto a config document) and
// internal/store/checkpoint.go's write-to-temp-then-rename pattern for
// crash-safe writes.
package modelrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/defilantech/modelsearch/internal/orchestrator"
)

// FSWriter implements orchestrator.ModelRepoWriter against a directory
// tree: RepoRoot/<modelName>/config.json holds each model's base config
// document, and every variant is materialized to
// RepoRoot/<modelName>/<variantName>/config.json.
type FSWriter struct {
	RepoRoot string

	// baseConfigs caches each model's base document so repeated variants
	// of the same model don't re-read it from disk.
	baseConfigs map[string][]byte
}

var _ orchestrator.ModelRepoWriter = (*FSWriter)(nil)

// NewFSWriter builds an FSWriter rooted at repoRoot.
func NewFSWriter(repoRoot string) *FSWriter {
	return &FSWriter{RepoRoot: repoRoot, baseConfigs: make(map[string][]byte)}
}

// WriteVariant overlays combo onto modelName's base config document and
// writes the result to RepoRoot/<modelName>/<variantName>/config.json,
// creating the variant directory if needed.
func (w *FSWriter) WriteVariant(ctx context.Context, modelName, variantName string, combo map[string]interface{}) error {
	base, err := w.baseConfig(modelName)
	if err != nil {
		return err
	}

	overlaid, err := overlayCombo(base, combo)
	if err != nil {
		return fmt.Errorf("modelrepo: overlay combo for %s/%s: %w", modelName, variantName, err)
	}

	variantDir := filepath.Join(w.RepoRoot, modelName, variantName)
	if err := os.MkdirAll(variantDir, 0o755); err != nil {
		return fmt.Errorf("modelrepo: create variant dir %s: %w", variantDir, err)
	}

	return writeFileAtomic(filepath.Join(variantDir, "config.json"), overlaid)
}

// baseConfig returns modelName's base config document, reading
// RepoRoot/<modelName>/config.json the first time and caching it
// thereafter. A model with no base config document overlays onto an empty
// JSON object.
func (w *FSWriter) baseConfig(modelName string) ([]byte, error) {
	if cached, ok := w.baseConfigs[modelName]; ok {
		return cached, nil
	}

	path := filepath.Join(w.RepoRoot, modelName, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte("{}")
		} else {
			return nil, fmt.Errorf("modelrepo: read base config %s: %w", path, err)
		}
	}
	w.baseConfigs[modelName] = data
	return data, nil
}

// overlayCombo sets every combo key onto base via sjson, sorted so the
// resulting document has deterministic key-write order. Nested keys use
// "." as a path separator, matching gjson/sjson dotted-path syntax.
func overlayCombo(base []byte, combo map[string]interface{}) ([]byte, error) {
	if !gjson.ValidBytes(base) {
		return nil, fmt.Errorf("base config is not valid JSON")
	}

	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := append([]byte(nil), base...)
	for _, k := range keys {
		updated, err := sjson.SetBytes(doc, k, combo[k])
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", k, err)
		}
		doc = updated
	}
	return doc, nil
}

// writeFileAtomic writes data to path via a sibling temp file and rename,
// so a crash mid-write never leaves a partially-written config behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("modelrepo: create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("modelrepo: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("modelrepo: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("modelrepo: rename into place: %w", err)
	}
	return nil
}

// ReadVariantConfig reads back a previously written variant's config
// document as a generic map, for tests and tooling that need to inspect
// what was written.
func ReadVariantConfig(repoRoot, modelName, variantName string) (map[string]interface{}, error) {
	path := filepath.Join(repoRoot, modelName, variantName, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBaseConfig reads modelName's base config document
// (RepoRoot/<modelName>/config.json) as a generic map, for populating a
// profile.ModelProfileSpec's default config before search-space
// derivation. A missing base config document returns an empty map, the
// same default WriteVariant overlays onto.
func ReadBaseConfig(repoRoot, modelName string) (map[string]interface{}, error) {
	path := filepath.Join(repoRoot, modelName, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("modelrepo: read base config %s: %w", path, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("modelrepo: parse base config %s: %w", path, err)
	}
	return out, nil
}
