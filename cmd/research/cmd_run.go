package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kocoro-lab/research-orchestrator/internal/chat"
	"github.com/Kocoro-lab/research-orchestrator/internal/orchestrator"
	"github.com/Kocoro-lab/research-orchestrator/internal/server"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

type researchFlags struct {
	focus      []string
	maxSources int
	format     string
	template   string
	json       bool
}

func (f *researchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringSliceVar(&f.focus, "focus", nil, "focus areas, repeatable or comma separated")
	fl.IntVar(&f.maxSources, "max-sources", 5, "maximum number of sources")
	fl.StringVar(&f.format, "format", "apa", "citation format: apa, mla, chicago or ieee")
	fl.StringVar(&f.template, "template", "", "pipeline template (default research)")
	fl.BoolVar(&f.json, "json", false, "print JSON")
}

func (f *researchFlags) request(args []string) orchestrator.Request {
	return orchestrator.Request{
		Query:          strings.Join(args, " "),
		FocusAreas:     f.focus,
		MaxSources:     f.maxSources,
		CitationFormat: workers.CitationFormat(strings.ToLower(f.format)),
		Template:       f.template,
	}
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var f researchFlags
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Conduct research on a topic with the configured workers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			// the CLI executes in-process; durable submission is the server's job
			cfg.Temporal.Enabled = false
			cfg.Submitter = "none"

			c, err := server.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Orchestrator.ConductResearch(cmd.Context(), f.request(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.json {
				return writeJSON(out, res)
			}
			fmt.Fprintln(out, chat.FormatResearch(res))
			fmt.Fprintln(out)
			fmt.Fprintln(out, bold("Bibliography:"))
			fmt.Fprintln(out, res.Citations.Bibliography)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newComposeCmd(g *globalFlags) *cobra.Command {
	var f researchFlags
	cmd := &cobra.Command{
		Use:   "compose <query>",
		Short: "Print the composed task graph for a query without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			cfg.Temporal.Enabled = false
			cfg.Submitter = "none"
			c, err := server.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			tasks, err := c.Orchestrator.Compose(f.request(args), cfg.AgentIDs.ByCapability())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.json {
				return writeJSON(out, tasks)
			}
			for i, t := range tasks {
				parents := "-"
				if len(t.Parents) > 0 {
					parents = strings.Join(t.Parents, ",")
				}
				fmt.Fprintf(out, "%s  %-24s agent=%s parents=%s\n", bold(fmt.Sprintf("%2d", i)), t.Operation, t.AgentID, parents)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
