package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kocoro-lab/research-orchestrator/internal/templates"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect pipeline templates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <dir>",
		Short: "Load and validate every template under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			reg := templates.NewRegistry()
			err := reg.LoadDirectory(args[0])
			var loadErr *templates.LoadError
			if errors.As(err, &loadErr) {
				for _, f := range loadErr.Failures {
					fmt.Fprintf(out, "%s %s\n", red("✗"), f)
				}
				return fmt.Errorf("%d template(s) invalid", len(loadErr.Failures))
			}
			if err != nil {
				return err
			}
			list := reg.List()
			if len(list) == 0 {
				fmt.Fprintln(out, yellow("no templates found"))
				return nil
			}
			for _, s := range list {
				fmt.Fprintf(out, "%s %s (%d stages) %s\n", green("✓"), s.Key, s.Stages, s.SourcePath)
			}
			return nil
		},
	})
	return cmd
}
