// Package main is the portpilot operator CLI. It exposes the portal's date
// normalizer, status derivation and spreadsheet import checks to the shell,
// so sheets can be validated and merged before anyone uploads them.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/table"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every command.
type app struct {
	in      io.Reader
	out     io.Writer
	log     *slog.Logger
	verbose bool
}

// newRootCmd builds the command tree. Streams are injected so tests can
// drive the CLI without touching the process's stdio.
func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:          "portpilot",
		Short:        "PortPilot operations tooling",
		Long:         `Normalize dates, derive container status and check, merge or pull the spreadsheets the portal imports and exports.`,
		SilenceUsage: true,
	}
	root.PersistentPreRun = func(*cobra.Command, []string) {
		level := slog.LevelWarn
		if a.verbose {
			level = slog.LevelDebug
		}
		a.log = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		a.normalizeCmd(),
		a.displayCmd(),
		a.statusCmd(),
		a.checkCmd(),
		a.templateCmd(),
		a.mergeCmd(),
		a.pullCmd(),
	)

	return root
}

// lookupSchema resolves a --resource flag value.
func lookupSchema(name string) (table.Schema, error) {
	p, ok := resources.Lookup(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		names := make([]string, 0, len(resources.All()))
		for _, p := range resources.All() {
			names = append(names, p.Schema.Resource)
		}
		return table.Schema{}, fmt.Errorf("unknown resource %q (one of: %s)", name, strings.Join(names, ", "))
	}
	return p.Schema, nil
}
