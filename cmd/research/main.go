// Command research is the operator CLI of the research orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/config"
	"github.com/Kocoro-lab/research-orchestrator/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "research",
		Short:         "Run, compose and register multi-agent research pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default $CONFIG_PATH or "+config.DefaultPath+")")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newRunCmd(&g),
		newComposeCmd(&g),
		newRegisterCmd(&g),
		newTemplatesCmd(),
	)
	return root
}

// load reads configuration and builds a logger for a command. CLI runs
// stay quiet unless --verbose is given.
func (g *globalFlags) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	lc := logging.Config{Level: "warn", Format: "console"}
	if g.verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}
