package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dejo1307/stabilitymcp/internal/baseline"
	"github.com/dejo1307/stabilitymcp/internal/config"
	"github.com/dejo1307/stabilitymcp/internal/engine"
	"github.com/dejo1307/stabilitymcp/internal/schema"
	"github.com/dejo1307/stabilitymcp/internal/server"
)

func newRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "stabilitymcp",
		Short: "Composable stability report collector",
		Long: `stabilitymcp collects the stability records of composable functions,
writes them as a deterministic JSON report and guards them with a baseline.

Commands:
  export    Write the stability report from a JSONL record stream
  check     Compare the current records with the stability baseline
  validate  Validate a report file against the report schema
  serve     Run the MCP server on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "stability.yaml", "path to the configuration file")

	load := func() (*config.Config, error) {
		return loadConfig(cfgPath)
	}

	root.AddCommand(
		exportCmd(load),
		checkCmd(load),
		validateCmd(load),
		serveCmd(load),
		versionCmd(),
	)
	return root
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[main] warning: %v, using defaults", err)
		return config.Default(), nil
	}
	return cfg, err
}

type configLoader func() (*config.Config, error)

func exportCmd(load configLoader) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stability report",
		Long: `Read function records from the JSONL input and write the stability report.
Anonymous functions are dropped and entries are sorted by qualified name.
When no composable qualifies nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Output.Report = output
			}
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}

			n, err := eng.Ingest(cmd.Context(), input)
			if err != nil {
				return err
			}
			res, err := eng.Export()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Written {
				fmt.Fprintf(out, "No composables to report (%d records read); %s not written\n", n, res.Path)
				return nil
			}
			fmt.Fprintf(out, "Stability report complete:\n")
			fmt.Fprintf(out, "  Records:      %d\n", n)
			fmt.Fprintf(out, "  Composables:  %d\n", res.Count)
			fmt.Fprintf(out, "  Output:       %s\n", res.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL record file (default: config input)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report path (default: config output.report)")
	return cmd
}

func checkCmd(load configLoader) *cobra.Command {
	var input string
	var update bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the current records with the stability baseline",
		Long: `Read function records from the JSONL input and compare the resulting report
with the baseline. Exits non-zero when any composable was added, removed or
changed. Use --update to accept the current report as the new baseline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			if _, err := eng.Ingest(cmd.Context(), input); err != nil {
				return err
			}

			if update {
				if err := eng.UpdateBaseline(); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Baseline updated: %s\n", eng.Config().Baseline.Path)
				return nil
			}

			res, err := eng.Check()
			if err != nil {
				return err
			}
			return printCheck(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL record file (default: config input)")
	cmd.Flags().BoolVar(&update, "update", false, "write the current report as the new baseline")
	return cmd
}

func printCheck(w io.Writer, res engine.CheckResult) error {
	if len(res.Changes) == 0 {
		color.New(color.FgGreen).Fprintf(w, "No stability changes against %s\n", res.BaselinePath)
		return nil
	}

	if !res.HasBaseline {
		color.New(color.FgYellow).Fprintf(w, "No baseline at %s; run check --update to create it\n", res.BaselinePath)
	}
	color.New(color.FgRed).Fprintf(w, "%d stability changes:\n", len(res.Changes))
	for _, c := range res.Changes {
		attr := color.FgYellow
		switch c.Kind {
		case baseline.KindAdded:
			attr = color.FgGreen
		case baseline.KindRemoved:
			attr = color.FgRed
		}
		color.New(attr).Fprintf(w, "  - %s\n", c)
	}
	if res.Diff != "" {
		fmt.Fprintf(w, "\n%s", res.Diff)
	}
	return baseline.ErrDrift
}

func validateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [report]",
		Short: "Validate a report file against the report schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			path := cfg.Output.Report
			if len(args) == 1 {
				path = args[0]
			}
			if err := schema.ValidateFile(path); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Report is valid (%s)\n", path)
			return nil
		},
	}
}

func serveCmd(load configLoader) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			if input != "" {
				if _, err := eng.Ingest(cmd.Context(), input); err != nil {
					return err
				}
			}

			srv, err := server.New(eng, version)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL record file to load before serving")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stabilitymcp %s\n", version)
		},
	}
}
