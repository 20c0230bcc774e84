package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/stellarlinkco/health-corpus/internal/record"
	"github.com/stellarlinkco/health-corpus/internal/split"
	"github.com/stellarlinkco/health-corpus/internal/template"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

// Params configures one corpus build.
type Params struct {
	CorpusName string
	Sources    map[string]string // source name -> CSV path
	Variants   []variant.Variant
	TrainRatio float64
	Seed       int64
	Template   template.Config
}

// SourceStat records how one source split.
type SourceStat struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
	Train int    `json:"train"`
	Test  int    `json:"test"`
}

// Build is the result of one pipeline run: the single raw combined corpus and
// one templated corpus per variant.
type Build struct {
	CorpusName string
	TrainRatio float64
	Seed       int64

	Sources []SourceStat
	Skipped []string // configured sources whose files were absent

	Raw     *record.Corpus
	Corpora map[string]*template.Corpus

	// VariantErrors holds per-variant templating failures. A failed variant
	// never disturbs the corpora other variants already produced.
	VariantErrors map[string]error
}

// TrainSize is the combined train size.
func (b *Build) TrainSize() int {
	if b == nil || b.Raw == nil {
		return 0
	}
	return len(b.Raw.Train)
}

// TestSize is the combined test size.
func (b *Build) TestSize() int {
	if b == nil || b.Raw == nil {
		return 0
	}
	return len(b.Raw.Test)
}

// Run executes the full pipeline: every source is loaded and split exactly
// once, the splits are combined exactly once, and each requested variant is
// templated from that same combined corpus. Missing source files are skipped
// and recorded; templating begins only after the combined corpus exists.
func Run(ctx context.Context, p Params) (*Build, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(p.Sources) == 0 {
		return nil, errors.New("pipeline: no sources configured")
	}
	if len(p.Variants) == 0 {
		return nil, errors.New("pipeline: no variants requested")
	}

	b := &Build{
		CorpusName:    p.CorpusName,
		TrainRatio:    p.TrainRatio,
		Seed:          p.Seed,
		Corpora:       make(map[string]*template.Corpus, len(p.Variants)),
		VariantErrors: make(map[string]error),
	}

	// Map iteration order is random; fix source-group order by name so the
	// concatenation (and therefore the combined shuffle) is reproducible.
	names := make([]string, 0, len(p.Sources))
	for name := range p.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var splits []*record.Split
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		set, err := record.LoadFile(name, p.Sources[name])
		var missing *record.MissingSourceError
		if errors.As(err, &missing) {
			b.Skipped = append(b.Skipped, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: load source %q: %w", name, err)
		}

		sp, err := split.Split(set, p.TrainRatio, p.Seed)
		if err != nil {
			return nil, fmt.Errorf("pipeline: split source %q: %w", name, err)
		}

		splits = append(splits, sp)
		b.Sources = append(b.Sources, SourceStat{
			Name:  name,
			Total: len(set.Records),
			Train: len(sp.Train),
			Test:  len(sp.Test),
		})
	}

	raw, err := split.Combine(splits, p.Seed)
	if err != nil {
		return nil, fmt.Errorf("pipeline: combine: %w", err)
	}
	b.Raw = raw

	tm := template.New(p.Template)
	for _, v := range p.Variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := b.Corpora[v.Name]; ok {
			continue
		}

		corpus, err := tm.Apply(raw, v)
		if err != nil {
			b.VariantErrors[v.Name] = err
			continue
		}
		b.Corpora[v.Name] = corpus
	}

	return b, nil
}
