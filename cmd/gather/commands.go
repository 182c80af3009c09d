package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/gather/graph"
	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/infrastructure"
	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/internal/runs"
)

const redacted = "[redacted]"

// runFailedError marks a run that completed with a failure outcome. The
// outcome itself is already on stdout.
type runFailedError struct {
	reason graph.Reason
}

func (e *runFailedError) Error() string {
	return fmt.Sprintf("run failed: %s", e.reason)
}

type runFlags struct {
	entry    string
	maxSteps int
	timeout  string
	pretty   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "gather",
		Short:         "Acquire, classify, and extract content from URLs and search queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd(), newGraphCmd(), newConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <target>",
		Short: "Run the graph for one URL or search query and print the outcome as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := runs.Request{
				Target:     strings.Join(args, " "),
				Entry:      f.entry,
				MaxSteps:   f.maxSteps,
				RunTimeout: f.timeout,
			}.RunRequest()
			if err != nil {
				return err
			}
			req.RunID = uuid.NewString()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			infra, err := infrastructure.NewWithLogger(cfg, cfg.Log.NewLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if err := infra.Start(); err != nil {
				return err
			}
			infra.Lifecycle.WaitForStartup()
			defer infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			o := infra.Pipeline.Run(ctx, req)
			if err := writeJSON(cmd.OutOrStdout(), o, f.pretty); err != nil {
				return err
			}
			if !o.Succeeded() {
				return &runFailedError{reason: o.Reason}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.entry, "entry", "", "entry step (defaults to the configured entry)")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "step budget for the run")
	cmd.Flags().StringVar(&f.timeout, "timeout", "", "overall run timeout, e.g. 90s")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "indent the JSON outcome")
	return cmd
}

func newGraphCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "List the graph steps with their edges and state slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			g, err := pipeline.Build(&cfg.Pipeline)
			if err != nil {
				return err
			}

			info := runs.GraphInfo{
				Name:     g.Name(),
				Entry:    cfg.Pipeline.Entry,
				MaxSteps: cfg.Pipeline.MaxSteps,
				Steps:    g.Describe(),
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info, true)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "STEP\tEDGES\tSLOTS\n")
			for _, s := range info.Steps {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, strings.Join(s.Edges, ","), strings.Join(s.Slots, ","))
			}
			fmt.Fprintf(tw, "\nentry %s, max steps %d\n", info.Entry, info.MaxSteps)
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			redact(cfg)

			enc := toml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndentTables(true)
			return enc.Encode(cfg)
		},
	}
}

func redact(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Services.OpenAI.APIKey,
		&cfg.Database.Password,
		&cfg.Database.URL,
		&cfg.Storage.ConnectionString,
	} {
		if *s != "" {
			*s = redacted
		}
	}
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
