package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/health-corpus/internal/llm"
	"github.com/stellarlinkco/health-corpus/internal/pipeline"
	"github.com/stellarlinkco/health-corpus/internal/template"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

type previewOptions struct {
	variantName    string
	split          string
	index          int
	addInstruction bool
	live           bool
	maxTokens      int
}

func newPreviewCmd(st *cliState) *cobra.Command {
	var opts previewOptions

	cmd := &cobra.Command{
		Use:     "preview",
		Short:   "Print one templated example without writing artifacts",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.variantName, "variant", "gen", "variant to template")
	cmd.Flags().StringVar(&opts.split, "split", "train", "partition to sample: train|test")
	cmd.Flags().IntVar(&opts.index, "index", 0, "example index within the partition")
	cmd.Flags().BoolVar(&opts.addInstruction, "add-instruction", true, "append per-source answer-format hints to each problem")
	cmd.Flags().BoolVar(&opts.live, "live", false, "send the example to the configured model and print its reply")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 1024, "max completion tokens for --live")

	return cmd
}

func runPreview(cmd *cobra.Command, st *cliState, opts *previewOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("preview: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("preview: nil options")
	}
	cfg := st.cfg

	split := strings.ToLower(strings.TrimSpace(opts.split))
	if split != "train" && split != "test" {
		return fmt.Errorf("preview: invalid --split %q (expected train|test)", opts.split)
	}
	if opts.index < 0 {
		return fmt.Errorf("preview: --index must be >= 0")
	}

	known, err := variant.Known(cfg.Corpus.VariantsDir)
	if err != nil {
		return err
	}
	variants, err := variant.Resolve([]string{opts.variantName}, known)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	build, err := pipeline.Run(ctx, pipeline.Params{
		CorpusName: cfg.Corpus.Name,
		Sources:    cfg.Corpus.Sources,
		Variants:   variants,
		TrainRatio: cfg.Split.TrainRatio,
		Seed:       cfg.Split.Seed,
		Template: template.Config{
			Concurrency:    1,
			AddInstruction: opts.addInstruction,
		},
	})
	if err != nil {
		return err
	}

	name := variants[0].Name
	corpus, ok := build.Corpora[name]
	if !ok {
		if verr, failed := build.VariantErrors[name]; failed {
			return verr
		}
		return fmt.Errorf("preview: variant %q produced no corpus", name)
	}

	examples := corpus.Train
	if split == "test" {
		examples = corpus.Test
	}
	if opts.index >= len(examples) {
		return fmt.Errorf("preview: index %d out of range (%s has %d examples)", opts.index, split, len(examples))
	}
	ex := examples[opts.index]

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Variant: %s (%s[%d], source=%s)\n", name, split, opts.index, ex.Source)
	for _, m := range ex.Prompt {
		fmt.Fprintf(out, "\n--- %s ---\n%s\n", m.Role, m.Content)
	}
	fmt.Fprintf(out, "\n--- answer ---\n%s\n", ex.Answer)

	if !opts.live {
		return nil
	}

	provider, err := llm.DefaultProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}

	req := &llm.Request{MaxTokens: opts.maxTokens}
	for _, m := range ex.Prompt {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("preview: %s: %w", provider.Name(), err)
	}
	fmt.Fprintf(out, "\n--- %s reply (in=%d out=%d tokens) ---\n%s\n",
		provider.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Text)
	return nil
}
