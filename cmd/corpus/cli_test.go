package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSourceCSV(t *testing.T, dir, name string, rows int) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("problem,answer\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "sensor reading %s %d,%d\n", name, i, i%5)
	}

	path := filepath.Join(dir, name+".csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
	return path
}

func writeTestConfig(t *testing.T, dir string, sources map[string]string, storage string) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("corpus:\n")
	sb.WriteString("  name: lifesnaps\n")
	sb.WriteString("  sources:\n")
	for name, path := range sources {
		fmt.Fprintf(&sb, "    %s: %s\n", name, path)
	}
	fmt.Fprintf(&sb, "  output_dir: %s\n", filepath.Join(dir, "out"))
	sb.WriteString("split:\n")
	sb.WriteString("  train_ratio: 0.8\n")
	sb.WriteString("  seed: 42\n")
	sb.WriteString("storage:\n")
	if storage == "sqlite" {
		sb.WriteString("  type: sqlite\n")
		fmt.Fprintf(&sb, "  path: %s\n", filepath.Join(dir, "corpus.db"))
	} else {
		sb.WriteString("  type: memory\n")
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("WriteFile(config): %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out, _, err := runCLIWithStderr(t, args...)
	return out, err
}

func runCLIWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	oldStderr := stderrWriter
	errBuf := &bytes.Buffer{}
	stderrWriter = errBuf
	t.Cleanup(func() { stderrWriter = oldStderr })

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errBuf.String(), err
}

type buildJSONLine struct {
	BuildID   string `json:"build_id"`
	Corpus    string `json:"corpus"`
	Seed      int64  `json:"seed"`
	TrainSize int    `json:"train_size"`
	TestSize  int    `json:"test_size"`
	Sources   []struct {
		Name  string `json:"name"`
		Total int    `json:"total"`
		Train int    `json:"train"`
		Test  int    `json:"test"`
	} `json:"sources"`
	Skipped   []string `json:"skipped"`
	Artifacts []struct {
		Variant   string `json:"variant"`
		TrainSize int    `json:"train_size"`
		TestSize  int    `json:"test_size"`
		Path      string `json:"path"`
	} `json:"artifacts"`
}

func TestBuildCommand(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{
		"fatigue": writeSourceCSV(t, dir, "fatigue", 10),
		"stress":  writeSourceCSV(t, dir, "stress", 4),
	}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	out, err := runCLI(t, "build", "--config", cfgPath, "--variant", "gen", "--output-format", "json")
	if err != nil {
		t.Fatalf("build: %v\noutput: %s", err, out)
	}

	var line buildJSONLine
	if err := json.Unmarshal([]byte(out), &line); err != nil {
		t.Fatalf("Unmarshal: %v\noutput: %s", err, out)
	}

	if line.Corpus != "lifesnaps" || line.Seed != 42 {
		t.Errorf("header: %#v", line)
	}
	if line.TrainSize != 11 || line.TestSize != 3 {
		t.Errorf("combined sizes: got %d/%d want 11/3", line.TrainSize, line.TestSize)
	}
	if len(line.Sources) != 2 {
		t.Fatalf("sources: got %d", len(line.Sources))
	}
	// Sorted by name: fatigue (10 -> 8/2), stress (4 -> 3/1).
	if line.Sources[0].Name != "fatigue" || line.Sources[0].Train != 8 || line.Sources[0].Test != 2 {
		t.Errorf("fatigue stat: %#v", line.Sources[0])
	}
	if line.Sources[1].Name != "stress" || line.Sources[1].Train != 3 || line.Sources[1].Test != 1 {
		t.Errorf("stress stat: %#v", line.Sources[1])
	}

	if len(line.Artifacts) != 1 || line.Artifacts[0].Variant != "gen" {
		t.Fatalf("artifacts: %#v", line.Artifacts)
	}
	for _, f := range []string{"train.jsonl", "test.jsonl", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(line.Artifacts[0].Path, f)); err != nil {
			t.Errorf("artifact file %s: %v", f, err)
		}
	}
}

func TestBuildCommandDeterministic(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{
		"fatigue": writeSourceCSV(t, dir, "fatigue", 10),
		"stress":  writeSourceCSV(t, dir, "stress", 4),
	}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	outA := filepath.Join(dir, "a")
	outB := filepath.Join(dir, "b")
	if _, err := runCLI(t, "build", "--config", cfgPath, "--variant", "tabc", "--output", outA, "--output-format", "json"); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := runCLI(t, "build", "--config", cfgPath, "--variant", "tabc", "--output", outB, "--output-format", "json"); err != nil {
		t.Fatalf("second build: %v", err)
	}

	for _, f := range []string{"train.jsonl", "test.jsonl"} {
		a, err := os.ReadFile(filepath.Join(outA, "lifesnaps_tabc", f))
		if err != nil {
			t.Fatalf("ReadFile a/%s: %v", f, err)
		}
		b, err := os.ReadFile(filepath.Join(outB, "lifesnaps_tabc", f))
		if err != nil {
			t.Fatalf("ReadFile b/%s: %v", f, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between identical builds", f)
		}
	}
}

func TestBuildCommandSkipsMissingSource(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{
		"fatigue": writeSourceCSV(t, dir, "fatigue", 10),
		"ghost":   filepath.Join(dir, "ghost.csv"),
	}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	out, err := runCLI(t, "build", "--config", cfgPath, "--variant", "gen", "--output-format", "json")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var line buildJSONLine
	if err := json.Unmarshal([]byte(out), &line); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(line.Skipped) != 1 || line.Skipped[0] != "ghost" {
		t.Errorf("skipped: %v", line.Skipped)
	}
	if line.TrainSize != 8 || line.TestSize != 2 {
		t.Errorf("sizes: got %d/%d want 8/2", line.TrainSize, line.TestSize)
	}
}

func TestBuildCommandWriteFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 10)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	// A plain file where gen's artifact directory belongs blocks that write.
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, "lifesnaps_gen"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	stdout, stderr, err := runCLIWithStderr(t, "build", "--config", cfgPath,
		"--variant", "gen", "--variant", "tac", "--output-format", "json")
	if err != nil {
		t.Fatalf("build: %v\noutput: %s", err, stdout)
	}

	var line buildJSONLine
	if err := json.Unmarshal([]byte(stdout), &line); err != nil {
		t.Fatalf("Unmarshal: %v\noutput: %s", err, stdout)
	}
	if len(line.Artifacts) != 1 || line.Artifacts[0].Variant != "tac" {
		t.Fatalf("artifacts: %#v", line.Artifacts)
	}
	if _, err := os.Stat(filepath.Join(out, "lifesnaps_tac", "train.jsonl")); err != nil {
		t.Errorf("tac artifact missing after gen write failure: %v", err)
	}
	if !strings.Contains(stderr, `write variant "gen"`) {
		t.Errorf("stderr missing gen write warning:\n%s", stderr)
	}
}

func TestBuildCommandAllWritesFailed(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 10)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, "lifesnaps_gen"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := runCLI(t, "build", "--config", cfgPath, "--variant", "gen")
	if err == nil || !strings.Contains(err.Error(), "every artifact write failed") {
		t.Fatalf("build: got %v", err)
	}
}

func TestBuildCommandUnknownVariant(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 10)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	_, err := runCLI(t, "build", "--config", cfgPath, "--variant", "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown variant") {
		t.Fatalf("build: got %v", err)
	}
}

func TestBuildCommandBadRatio(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 10)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	_, err := runCLI(t, "build", "--config", cfgPath, "--train-ratio", "1.5")
	if err == nil || !strings.Contains(err.Error(), "train-ratio") {
		t.Fatalf("build: got %v", err)
	}
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 3)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	out, err := runCLI(t, "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"gen", "tac", "tabc", "tabc_long", "fatigue"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPreviewCommand(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 5)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	out, err := runCLI(t, "preview", "--config", cfgPath, "--variant", "tabc", "--index", "0")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "--- system ---") || !strings.Contains(out, "--- user ---") {
		t.Errorf("output missing prompt turns:\n%s", out)
	}
	if !strings.Contains(out, "PROBLEM:") {
		t.Errorf("output missing user turn body:\n%s", out)
	}
}

func TestPreviewCommandIndexOutOfRange(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 5)}
	cfgPath := writeTestConfig(t, dir, sources, "memory")

	_, err := runCLI(t, "preview", "--config", cfgPath, "--index", "99")
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("preview: got %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 10)}
	cfgPath := writeTestConfig(t, dir, sources, "sqlite")

	buildOut, err := runCLI(t, "build", "--config", cfgPath, "--variant", "gen", "--output-format", "json")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var line buildJSONLine
	if err := json.Unmarshal([]byte(buildOut), &line); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	out, err := runCLI(t, "history", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, line.BuildID) {
		t.Errorf("history missing build %q:\n%s", line.BuildID, out)
	}

	out, err = runCLI(t, "history", "show", line.BuildID, "--config", cfgPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, "gen") || !strings.Contains(out, "lifesnaps") {
		t.Errorf("history show output:\n%s", out)
	}
}

func TestHistoryShowMissingBuild(t *testing.T) {
	dir := t.TempDir()
	sources := map[string]string{"fatigue": writeSourceCSV(t, dir, "fatigue", 3)}
	cfgPath := writeTestConfig(t, dir, sources, "sqlite")

	_, err := runCLI(t, "history", "show", "nope", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("history show: got %v", err)
	}
}
