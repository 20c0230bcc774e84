package artifact

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stellarlinkco/health-corpus/internal/template"
)

const (
	trainFile    = "train.jsonl"
	testFile     = "test.jsonl"
	manifestFile = "manifest.json"
)

// Manifest describes one persisted variant artifact.
type Manifest struct {
	Corpus     string    `json:"corpus"`
	Variant    string    `json:"variant"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
	Seed       int64     `json:"seed"`
	TrainRatio float64   `json:"train_ratio"`
	CreatedAt  time.Time `json:"created_at"`
}

// Write persists one templated corpus under
// <outputDir>/<corpus>_<variant>/ as train.jsonl, test.jsonl, and a
// manifest. It returns the artifact directory.
func Write(outputDir, corpusName, variantName string, c *template.Corpus, seed int64, trainRatio float64) (string, error) {
	if c == nil {
		return "", errors.New("artifact: nil corpus")
	}
	corpusName = strings.TrimSpace(corpusName)
	variantName = strings.TrimSpace(variantName)
	if corpusName == "" || variantName == "" {
		return "", errors.New("artifact: missing corpus/variant name")
	}

	dir := filepath.Join(outputDir, fmt.Sprintf("%s_%s", corpusName, variantName))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: create %q: %w", dir, err)
	}

	if err := writeJSONL(filepath.Join(dir, trainFile), c.Train); err != nil {
		return "", err
	}
	if err := writeJSONL(filepath.Join(dir, testFile), c.Test); err != nil {
		return "", err
	}

	m := Manifest{
		Corpus:     corpusName,
		Variant:    variantName,
		TrainSize:  len(c.Train),
		TestSize:   len(c.Test),
		Seed:       seed,
		TrainRatio: trainRatio,
		CreatedAt:  time.Now().UTC(),
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifact: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), append(b, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("artifact: write manifest: %w", err)
	}

	return dir, nil
}

// ReadManifest loads the manifest from an artifact directory.
func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("artifact: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("artifact: parse manifest: %w", err)
	}
	return &m, nil
}

// ReadExamples loads one JSONL partition back into memory.
func ReadExamples(path string) ([]template.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %q: %w", path, err)
	}
	defer f.Close()

	var out []template.Example
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ex template.Example
		if err := json.Unmarshal([]byte(line), &ex); err != nil {
			return nil, fmt.Errorf("artifact: parse %q: %w", path, err)
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("artifact: scan %q: %w", path, err)
	}
	return out, nil
}

func writeJSONL(path string, examples []template.Example) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: create %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range examples {
		if err := enc.Encode(&examples[i]); err != nil {
			return fmt.Errorf("artifact: encode %q: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("artifact: flush %q: %w", path, err)
	}
	return f.Close()
}
