package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/health-corpus/internal/artifact"
	"github.com/stellarlinkco/health-corpus/internal/pipeline"
	"github.com/stellarlinkco/health-corpus/internal/registry"
	"github.com/stellarlinkco/health-corpus/internal/store"
	"github.com/stellarlinkco/health-corpus/internal/template"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

type buildOptions struct {
	variants       []string
	trainRatio     float64
	seed           int64
	outputDir      string
	output         string
	concurrency    int
	addInstruction bool
	publish        bool
}

type artifactResult struct {
	variant   string
	dir       string
	published bool
	trainSize int
	testSize  int
}

func newBuildCmd(st *cliState) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:     "build",
		Short:   "Build the corpus and persist one artifact per variant",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, st, &opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.variants, "variant", nil, "variants to template (repeatable; 'all' expands to every known variant)")
	cmd.Flags().Float64Var(&opts.trainRatio, "train-ratio", -1, "train split ratio between 0 and 1 exclusive (overrides config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "shuffle seed (overrides config)")
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "artifact output directory (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output-format", "table", "summary format: table|json")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "concurrent templating workers")
	cmd.Flags().BoolVar(&opts.addInstruction, "add-instruction", true, "append per-source answer-format hints to each problem")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "push artifacts to the configured registry after writing")

	return cmd
}

func runBuild(cmd *cobra.Command, st *cliState, opts *buildOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("build: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("build: nil options")
	}
	cfg := st.cfg

	trainRatio := cfg.Split.TrainRatio
	if opts.trainRatio >= 0 {
		trainRatio = opts.trainRatio
	}
	if trainRatio <= 0 || trainRatio >= 1 {
		return fmt.Errorf("build: train-ratio must be between 0 and 1 exclusive (got %v)", trainRatio)
	}

	seed := cfg.Split.Seed
	if cmd.Flags().Changed("seed") {
		seed = opts.seed
	}

	outputDir := strings.TrimSpace(opts.outputDir)
	if outputDir == "" {
		outputDir = cfg.Corpus.OutputDir
	}

	requested := opts.variants
	if len(requested) == 0 {
		requested = cfg.Corpus.Variants
	}
	if len(requested) == 0 {
		requested = []string{variant.All}
	}

	known, err := variant.Known(cfg.Corpus.VariantsDir)
	if err != nil {
		return err
	}
	variants, err := variant.Resolve(requested, known)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startedAt := time.Now().UTC()
	build, err := pipeline.Run(ctx, pipeline.Params{
		CorpusName: cfg.Corpus.Name,
		Sources:    cfg.Corpus.Sources,
		Variants:   variants,
		TrainRatio: trainRatio,
		Seed:       seed,
		Template: template.Config{
			Concurrency:    opts.concurrency,
			AddInstruction: opts.addInstruction,
		},
	})
	if err != nil {
		return err
	}
	finishedAt := time.Now().UTC()

	for _, name := range build.Skipped {
		fmt.Fprintf(stderrWriter, "warning: source %q: file missing, skipped\n", name)
	}

	variantNames := make([]string, 0, len(build.Corpora))
	for name := range build.Corpora {
		variantNames = append(variantNames, name)
	}
	sort.Strings(variantNames)

	failedNames := make([]string, 0, len(build.VariantErrors))
	for name := range build.VariantErrors {
		failedNames = append(failedNames, name)
	}
	sort.Strings(failedNames)
	for _, name := range failedNames {
		fmt.Fprintf(stderrWriter, "warning: variant %q failed: %v\n", name, build.VariantErrors[name])
	}
	if len(variantNames) == 0 {
		return fmt.Errorf("build: every variant failed")
	}

	var publisher *registry.Client
	if opts.publish {
		publisher = registry.NewClient(cfg.Registry.BaseURL, cfg.Registry.Prefix, cfg.Registry.APIKey)
	}

	var artifacts []artifactResult
	for _, name := range variantNames {
		corpus := build.Corpora[name]
		dir, err := artifact.Write(outputDir, build.CorpusName, name, corpus, seed, trainRatio)
		if err != nil {
			// One variant's write failure must not cost the others their
			// artifacts.
			fmt.Fprintf(stderrWriter, "warning: write variant %q: %v\n", name, err)
			continue
		}

		res := artifactResult{
			variant:   name,
			dir:       dir,
			trainSize: len(corpus.Train),
			testSize:  len(corpus.Test),
		}
		if publisher != nil {
			if err := publisher.Publish(ctx, dir, name); err != nil {
				fmt.Fprintf(stderrWriter, "warning: publish variant %q: %v\n", name, err)
			} else {
				res.published = true
			}
		}
		artifacts = append(artifacts, res)
	}
	if len(artifacts) == 0 {
		return fmt.Errorf("build: every artifact write failed")
	}

	buildID, err := newBuildID()
	if err != nil {
		return fmt.Errorf("build: generate build id: %w", err)
	}

	if err := saveBuildToStore(ctx, st, build, buildID, startedAt, finishedAt, opts, trainRatio, seed, outputDir, artifacts); err != nil {
		return err
	}

	return printBuildSummary(cmd, opts.output, buildID, build, seed, trainRatio, artifacts)
}

func printBuildSummary(cmd *cobra.Command, format, buildID string, build *pipeline.Build, seed int64, trainRatio float64, artifacts []artifactResult) error {
	out := cmd.OutOrStdout()

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		fmt.Fprintf(out, "Build: %s (corpus=%s seed=%d train_ratio=%v)\n", buildID, build.CorpusName, seed, trainRatio)
		fmt.Fprintf(out, "Combined: train=%d test=%d\n\n", build.TrainSize(), build.TestSize())

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tTOTAL\tTRAIN\tTEST")
		for _, s := range build.Sources {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Name, s.Total, s.Train, s.Test)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(out)
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "VARIANT\tTRAIN\tTEST\tPUBLISHED\tPATH")
		for _, a := range artifacts {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%s\n", a.variant, a.trainSize, a.testSize, a.published, a.dir)
		}
		return tw.Flush()
	case "json", "jsonl":
		type jsonArtifact struct {
			Variant   string `json:"variant"`
			TrainSize int    `json:"train_size"`
			TestSize  int    `json:"test_size"`
			Published bool   `json:"published"`
			Path      string `json:"path"`
		}
		line := struct {
			BuildID   string                `json:"build_id"`
			Corpus    string                `json:"corpus"`
			Seed      int64                 `json:"seed"`
			Ratio     float64               `json:"train_ratio"`
			TrainSize int                   `json:"train_size"`
			TestSize  int                   `json:"test_size"`
			Sources   []pipeline.SourceStat `json:"sources"`
			Skipped   []string              `json:"skipped,omitempty"`
			Artifacts []jsonArtifact        `json:"artifacts"`
		}{
			BuildID:   buildID,
			Corpus:    build.CorpusName,
			Seed:      seed,
			Ratio:     trainRatio,
			TrainSize: build.TrainSize(),
			TestSize:  build.TestSize(),
			Sources:   build.Sources,
			Skipped:   build.Skipped,
		}
		for _, a := range artifacts {
			line.Artifacts = append(line.Artifacts, jsonArtifact{
				Variant:   a.variant,
				TrainSize: a.trainSize,
				TestSize:  a.testSize,
				Published: a.published,
				Path:      a.dir,
			})
		}
		b, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("build: marshal json: %w", err)
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	default:
		return fmt.Errorf("build: invalid --output-format %q (expected table|json)", format)
	}
}

func saveBuildToStore(ctx context.Context, st *cliState, build *pipeline.Build, buildID string, startedAt, finishedAt time.Time, opts *buildOptions, trainRatio float64, seed int64, outputDir string, artifacts []artifactResult) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("build: missing config (internal error)")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return fmt.Errorf("build: open store: %w", err)
	}
	defer stor.Close()

	var writer store.BuildWriter = stor

	rec := &store.BuildRecord{
		ID:           buildID,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Corpus:       build.CorpusName,
		Seed:         seed,
		TrainRatio:   trainRatio,
		TotalSources: len(build.Sources),
		Skipped:      build.Skipped,
		TrainSize:    build.TrainSize(),
		TestSize:     build.TestSize(),
		Config: map[string]any{
			"output_dir":      outputDir,
			"concurrency":     opts.concurrency,
			"add_instruction": opts.addInstruction,
			"publish":         opts.publish,
		},
	}
	if err := writer.SaveBuild(ctx, rec); err != nil {
		return fmt.Errorf("build: save build: %w", err)
	}

	for i, a := range artifacts {
		vr := &store.VariantRecord{
			ID:         fmt.Sprintf("%s_variant_%d", buildID, i+1),
			BuildID:    buildID,
			Variant:    a.variant,
			TrainSize:  a.trainSize,
			TestSize:   a.testSize,
			OutputPath: a.dir,
			Published:  a.published,
			CreatedAt:  finishedAt,
		}
		if err := writer.SaveVariant(ctx, vr); err != nil {
			return fmt.Errorf("build: save variant %q: %w", a.variant, err)
		}
	}
	return nil
}

func newBuildID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("build_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
