package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portpilot/portal/internal/datefmt"
	"github.com/portpilot/portal/internal/status"
)

func (a *app) normalizeCmd() *cobra.Command {
	var dateTime bool
	cmd := &cobra.Command{
		Use:   "normalize VALUE...",
		Short: "Print the canonical form of each date",
		Long: `Normalize parses loosely written dates ("3/4", "3-4-25 2:30pm", "March 4, 2025")
and prints YYYY-MM-DD, or YYYY-MM-DD HH:MM:SS with --datetime. Unparseable
values print an empty line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, v := range args {
				fmt.Fprintln(a.out, datefmt.Normalize(v, dateTime))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dateTime, "datetime", false, "Treat values as date-times")
	return cmd
}

func (a *app) displayCmd() *cobra.Command {
	var dateTime bool
	cmd := &cobra.Command{
		Use:   "display VALUE...",
		Short: "Print each canonical date the way the portal shows it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			for _, v := range args {
				fmt.Fprintln(a.out, datefmt.Display(v, dateTime))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dateTime, "datetime", false, "Treat values as date-times")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status FIELD=VALUE...",
		Short: "Derive a container status from milestone fields",
		Example: `  portpilot status mbl_no=MAEU123 container=MSKU1 arrived=2025-03-04
  Arrival`,
		RunE: func(_ *cobra.Command, args []string) error {
			fields := make(map[string]string, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(k) == "" {
					return fmt.Errorf("expected FIELD=VALUE, got %q", arg)
				}
				fields[strings.TrimSpace(k)] = v
			}
			fmt.Fprintln(a.out, status.Derive(fields))
			return nil
		},
	}
}
