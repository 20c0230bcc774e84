package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/health-corpus/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "corpus",
		Short:         "Build templated training corpora from tabular health-sensor records",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newBuildCmd(st))
	root.AddCommand(newPreviewCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newHistoryCmd(st))
	return root
}

func loadConfigPreRun(st *cliState) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(st.configPath)
		if err != nil {
			return err
		}
		st.cfg = cfg
		return nil
	}
}
