package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

func newListCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List known variants and configured sources",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, st)
		},
	}
	return cmd
}

func runList(cmd *cobra.Command, st *cliState) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("list: missing config (internal error)")
	}
	cfg := st.cfg

	known, err := variant.Known(cfg.Corpus.VariantsDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Variants:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tSYSTEM")
	for _, v := range known {
		fmt.Fprintf(tw, "  %s\t%s\n", v.Name, truncate(v.System, 72))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Corpus.Sources))
	for name := range cfg.Corpus.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nSources:")
	if len(names) == 0 {
		fmt.Fprintln(out, "  (none configured)")
		return nil
	}
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tPATH\tSTATUS")
	for _, name := range names {
		path := cfg.Corpus.Sources[name]
		status := "ok"
		if _, err := os.Stat(path); err != nil {
			status = "missing"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, path, status)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
