package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/health-corpus/internal/store"
)

type historyOptions struct {
	corpus string
	limit  int
	since  string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:               "history",
		Short:             "Show corpus build history",
		Args:              cobra.NoArgs,
		PersistentPreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus name to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max builds to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only builds since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <build-id>",
		Short: "Show details for a build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.BuildReader = stor

	builds, err := reader.ListBuilds(cmd.Context(), store.BuildFilter{
		Corpus: strings.TrimSpace(opts.corpus),
		Since:  since,
		Limit:  opts.limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(builds) == 0 {
		_, _ = fmt.Fprintln(out, "No builds found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD_ID\tSTARTED\tCORPUS\tSEED\tRATIO\tSOURCES\tTRAIN\tTEST\tSKIPPED")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%d\t%d\t%d\t%d\n",
			b.ID,
			formatTime(b.StartedAt),
			b.Corpus,
			b.Seed,
			b.TrainRatio,
			b.TotalSources,
			b.TrainSize,
			b.TestSize,
			len(b.Skipped),
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, buildID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	buildID = strings.TrimSpace(buildID)
	if buildID == "" {
		return fmt.Errorf("history: missing build id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.BuildReader = stor

	build, err := reader.GetBuild(cmd.Context(), buildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: build %q not found", buildID)
		}
		return err
	}

	variants, err := reader.GetVariants(cmd.Context(), buildID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Build: %s\n", build.ID)
	_, _ = fmt.Fprintf(out, "Started: %s\n", formatTime(build.StartedAt))
	_, _ = fmt.Fprintf(out, "Finished: %s\n", formatTime(build.FinishedAt))
	_, _ = fmt.Fprintf(out, "Corpus: %s seed=%d train_ratio=%v\n", build.Corpus, build.Seed, build.TrainRatio)
	_, _ = fmt.Fprintf(out, "Sizes: sources=%d train=%d test=%d\n", build.TotalSources, build.TrainSize, build.TestSize)
	if len(build.Skipped) > 0 {
		_, _ = fmt.Fprintf(out, "Skipped: %s\n", strings.Join(build.Skipped, ", "))
	}

	if len(variants) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tTRAIN\tTEST\tPUBLISHED\tPATH")
	for _, v := range variants {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%s\n", v.Variant, v.TrainSize, v.TestSize, v.Published, v.OutputPath)
	}
	return tw.Flush()
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
