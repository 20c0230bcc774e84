package template

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stellarlinkco/health-corpus/internal/record"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

func testCorpus(n int) *record.Corpus {
	c := &record.Corpus{}
	for i := 0; i < n; i++ {
		c.Train = append(c.Train, record.Record{
			Problem: fmt.Sprintf("train problem %d", i),
			Answer:  fmt.Sprintf("%d", i),
			Source:  "PMData-fatigue",
		})
	}
	c.Test = append(c.Test, record.Record{
		Problem: "test problem",
		Answer:  "3.5",
		Source:  "LifeSnaps-stress_resilience",
	})
	return c
}

func testVariant() variant.Variant {
	return variant.Variant{Name: "gen", System: "Answer the question."}
}

func TestApplyPromptShape(t *testing.T) {
	t.Parallel()

	tm := New(Config{})
	out, err := tm.Apply(testCorpus(3), testVariant())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, ex := range append(append([]Example(nil), out.Train...), out.Test...) {
		if len(ex.Prompt) != 2 {
			t.Fatalf("len(Prompt): got %d want 2", len(ex.Prompt))
		}
		if ex.Prompt[0].Role != "system" || ex.Prompt[1].Role != "user" {
			t.Fatalf("roles: got %q, %q", ex.Prompt[0].Role, ex.Prompt[1].Role)
		}
		if ex.Prompt[0].Content != "Answer the question." {
			t.Fatalf("system content: got %q", ex.Prompt[0].Content)
		}
		if !strings.HasPrefix(ex.Prompt[1].Content, "\n\nPROBLEM: ") || !strings.HasSuffix(ex.Prompt[1].Content, "\n\n") {
			t.Fatalf("user content: got %q", ex.Prompt[1].Content)
		}
	}
}

func TestApplyUserTurnLiteral(t *testing.T) {
	t.Parallel()

	tm := New(Config{})
	c := &record.Corpus{Train: []record.Record{{Problem: "How tired?", Answer: "2", Source: "s"}}}

	out, err := tm.Apply(c, testVariant())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := "\n\nPROBLEM: How tired?\n\n"
	if got := out.Train[0].Prompt[1].Content; got != want {
		t.Fatalf("user content: got %q want %q", got, want)
	}
}

func TestApplyPassesThroughAnswerAndSource(t *testing.T) {
	t.Parallel()

	tm := New(Config{})
	out, err := tm.Apply(testCorpus(1), testVariant())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Train[0].Answer != "0" || out.Train[0].Source != "PMData-fatigue" {
		t.Fatalf("pass-through: got answer=%q source=%q", out.Train[0].Answer, out.Train[0].Source)
	}
	if out.Test[0].Answer != "3.5" {
		t.Fatalf("float answer stayed text: got %q", out.Test[0].Answer)
	}
}

func TestApplyPreservesOrderUnderConcurrency(t *testing.T) {
	t.Parallel()

	c := testCorpus(200)
	sequential, err := New(Config{Concurrency: 1}).Apply(c, testVariant())
	if err != nil {
		t.Fatalf("Apply sequential: %v", err)
	}
	parallel, err := New(Config{Concurrency: 16}).Apply(c, testVariant())
	if err != nil {
		t.Fatalf("Apply parallel: %v", err)
	}
	if !reflect.DeepEqual(sequential, parallel) {
		t.Fatalf("parallel templating reordered output")
	}
}

func TestApplyDoesNotMutateRawCorpus(t *testing.T) {
	t.Parallel()

	c := testCorpus(5)
	before := &record.Corpus{
		Train: append([]record.Record(nil), c.Train...),
		Test:  append([]record.Record(nil), c.Test...),
	}

	if _, err := New(Config{}).Apply(c, testVariant()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(before, c) {
		t.Fatalf("Apply mutated the raw corpus")
	}
}

func TestApplyTwoVariantsShareRecords(t *testing.T) {
	t.Parallel()

	c := testCorpus(10)
	tm := New(Config{})

	a, err := tm.Apply(c, variant.Variant{Name: "a", System: "sys A"})
	if err != nil {
		t.Fatalf("Apply a: %v", err)
	}
	b, err := tm.Apply(c, variant.Variant{Name: "b", System: "sys B"})
	if err != nil {
		t.Fatalf("Apply b: %v", err)
	}

	if len(a.Train) != len(b.Train) {
		t.Fatalf("train sizes differ: %d vs %d", len(a.Train), len(b.Train))
	}
	for i := range a.Train {
		if a.Train[i].Prompt[1].Content != b.Train[i].Prompt[1].Content {
			t.Fatalf("train[%d]: user turns differ across variants", i)
		}
		if a.Train[i].Answer != b.Train[i].Answer || a.Train[i].Source != b.Train[i].Source {
			t.Fatalf("train[%d]: answer/source differ across variants", i)
		}
		if a.Train[i].Prompt[0].Content == b.Train[i].Prompt[0].Content {
			t.Fatalf("train[%d]: system turns should differ across variants", i)
		}
	}
}

func TestApplyMissingProblemFailsLoudly(t *testing.T) {
	t.Parallel()

	c := &record.Corpus{Train: []record.Record{{Answer: "1", Source: "PMData-fatigue"}}}
	if _, err := New(Config{}).Apply(c, testVariant()); err == nil {
		t.Fatalf("Apply: expected schema-violation error")
	}
}

func TestApplyAddInstruction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		source string
		want   string
	}{
		{"PMData-fatigue", "from 0 to 5"},
		{"PMData-readiness", "from 0 to 10"},
		{"PMData-sleep_quality", "from 1 to 5"},
		{"LifeSnaps-stress_resilience", "from 0 to 5"},
		{"unknown", "Only provide the predicted value"},
	}

	tm := New(Config{AddInstruction: true})
	for _, tc := range cases {
		c := &record.Corpus{Train: []record.Record{{Problem: "p", Answer: "1", Source: tc.source}}}
		out, err := tm.Apply(c, testVariant())
		if err != nil {
			t.Fatalf("Apply(%s): %v", tc.source, err)
		}
		if got := out.Train[0].Prompt[1].Content; !strings.Contains(got, tc.want) {
			t.Fatalf("Apply(%s): user turn %q missing %q", tc.source, got, tc.want)
		}
	}
}
