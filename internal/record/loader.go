package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// MissingSourceError reports a configured source whose file does not exist.
// Callers are expected to treat it as a skip condition, not a failure.
type MissingSourceError struct {
	Name string
	Path string
}

func (e *MissingSourceError) Error() string {
	if e == nil {
		return "record: missing source <nil>"
	}
	return fmt.Sprintf("record: source %q not found at %q", e.Name, e.Path)
}

// LoadFile reads one CSV source into a SourceSet.
//
// The header must carry a problem column ("question" is accepted as an alias
// and wins when both are present). Answer values pass through as text; an
// absent answer column leaves Answer empty. A missing source column falls
// back to the given source name. A row with blank problem text fails the
// whole load.
func LoadFile(name, path string) (*SourceSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("record: empty source name")
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingSourceError{Name: name, Path: path}
		}
		return nil, fmt.Errorf("record: open %q: %w", path, err)
	}
	defer f.Close()

	set, err := load(name, f)
	if err != nil {
		return nil, fmt.Errorf("record: load %q: %w", path, err)
	}
	return set, nil
}

func load(name string, r io.Reader) (*SourceSet, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty source")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	set := &SourceSet{Name: name}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		if strings.TrimSpace(row[cols.problem]) == "" {
			return nil, fmt.Errorf("row %d: empty problem text", line)
		}

		rec := Record{
			Problem: row[cols.problem],
			Source:  name,
		}
		if cols.answer >= 0 {
			rec.Answer = row[cols.answer]
		}
		if cols.source >= 0 && strings.TrimSpace(row[cols.source]) != "" {
			rec.Source = row[cols.source]
		}
		set.Records = append(set.Records, rec)
	}

	return set, nil
}

type columns struct {
	problem int
	answer  int
	source  int
}

// resolveColumns finds the canonical problem-text column once at load time, so
// nothing downstream has to probe for the question/problem alias again.
func resolveColumns(header []string) (columns, error) {
	cols := columns{problem: -1, answer: -1, source: -1}
	problemIdx := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "question":
			if cols.problem < 0 {
				cols.problem = i
			}
		case "problem":
			problemIdx = i
		case "answer":
			cols.answer = i
		case "source":
			cols.source = i
		}
	}
	if cols.problem < 0 {
		cols.problem = problemIdx
	}
	if cols.problem < 0 {
		return cols, errors.New("header has neither \"question\" nor \"problem\" column")
	}
	return cols, nil
}
