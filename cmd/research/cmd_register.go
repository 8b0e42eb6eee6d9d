package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kocoro-lab/research-orchestrator/internal/edenlayer"
)

func newRegisterCmd(g *globalFlags) *cobra.Command {
	var orchestratorOnly, all bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the research agents with Edenlayer and print their env lines",
		Long: "Registers the four worker agents, or the orchestrator with --orchestrator,\n" +
			"using manifests served from AGENT_BASE_URL. Save the printed lines to .env.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if cfg.Edenlayer.APIKey == "" {
				return errors.New("EDENLAYER_API_KEY is not set")
			}
			manifests, err := edenlayer.Manifests(cfg.AgentBaseURL)
			if err != nil {
				return err
			}
			var selected []edenlayer.Manifest
			for _, m := range manifests {
				if all || m.Orchestrator == orchestratorOnly {
					selected = append(selected, m)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Registering %d agent(s) at %s\n", len(selected), cfg.Edenlayer.APIURL)
			regs := edenlayer.NewClient(cfg.Edenlayer, logger).RegisterAll(cmd.Context(), selected)

			failed := 0
			for _, r := range regs {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %v\n", red("✗"), r.Manifest.Registration.Name, r.Err)
					continue
				}
				fmt.Fprintf(out, "%s %s\n", green("✓"), r.Manifest.Registration.Name)
			}
			if failed < len(regs) {
				fmt.Fprintln(out)
				fmt.Fprintln(out, yellow("Add these to your .env:"))
				for _, r := range regs {
					if r.Err == nil {
						fmt.Fprintln(out, r.EnvLine())
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d registrations failed", failed, len(regs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&orchestratorOnly, "orchestrator", false, "register only the orchestrator agent")
	cmd.Flags().BoolVar(&all, "all", false, "register the workers and the orchestrator")
	cmd.MarkFlagsMutuallyExclusive("orchestrator", "all")
	return cmd
}
