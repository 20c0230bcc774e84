package template

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stellarlinkco/health-corpus/internal/record"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

const userTurnFormat = "\n\nPROBLEM: %s\n\n"

// Config controls how a Templater maps records.
type Config struct {
	// Concurrency bounds the number of records templated at once. The
	// mapping is independent per record, so parallel evaluation never
	// changes the output; results stay index-aligned with the input.
	Concurrency int

	// AddInstruction appends a per-source answer-format hint to each
	// problem before templating.
	AddInstruction bool
}

// Templater maps a combined raw corpus into conversation-format examples.
type Templater struct {
	cfg Config
}

// New creates a Templater with normalized defaults.
func New(cfg Config) *Templater {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Templater{cfg: cfg}
}

// Apply templates every record of the corpus under the given variant. The
// input corpus is read-only; each call produces an independent result, so one
// raw corpus can be templated under any number of variants.
func (t *Templater) Apply(c *record.Corpus, v variant.Variant) (*Corpus, error) {
	if t == nil {
		return nil, errors.New("template: nil templater")
	}
	if c == nil {
		return nil, errors.New("template: nil corpus")
	}
	if v.System == "" {
		return nil, fmt.Errorf("template: variant %q has empty system text", v.Name)
	}

	train, err := t.mapRecords(c.Train, v)
	if err != nil {
		return nil, fmt.Errorf("template: variant %q: train: %w", v.Name, err)
	}
	test, err := t.mapRecords(c.Test, v)
	if err != nil {
		return nil, fmt.Errorf("template: variant %q: test: %w", v.Name, err)
	}
	return &Corpus{Train: train, Test: test}, nil
}

func (t *Templater) mapRecords(records []record.Record, v variant.Variant) ([]Example, error) {
	out := make([]Example, len(records))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, t.cfg.Concurrency)

	for i := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			ex, err := t.example(records[i], v)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			out[i] = ex
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (t *Templater) example(r record.Record, v variant.Variant) (Example, error) {
	if r.Problem == "" {
		return Example{}, fmt.Errorf("record from source %q has no problem text", r.Source)
	}

	problem := r.Problem
	if t.cfg.AddInstruction {
		problem += instructionFor(r.Source)
	}

	return Example{
		Prompt: []Message{
			{Role: "system", Content: v.System},
			{Role: "user", Content: fmt.Sprintf(userTurnFormat, problem)},
		},
		Answer: r.Answer,
		Source: r.Source,
	}, nil
}
