package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portpilot/portal/internal/sheet"
	"github.com/portpilot/portal/internal/table"
)

func (a *app) checkCmd() *cobra.Command {
	var resource string
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Check that a workbook would import cleanly",
		Long: `Check reads the first sheet of an .xlsx or .xls workbook, maps it onto the
page's columns and runs the save-time validation (required fields, duplicate
keys). Nothing is uploaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			schema, err := lookupSchema(resource)
			if err != nil {
				return err
			}
			rows, err := readRows(schema, args[0])
			if err != nil {
				return err
			}
			a.log.Debug("workbook parsed", "file", args[0], "rows", len(rows))
			if err := table.ValidateRows(schema, rows); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: %d rows OK for %s\n", args[0], len(rows), schema.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Page the workbook is for (containers, drayage, warehouses, users)")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func (a *app) templateCmd() *cobra.Command {
	var resource, output string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty workbook with the page's import header",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			schema, err := lookupSchema(resource)
			if err != nil {
				return err
			}
			if output == "" {
				output = schema.FileName
			}
			cols := schema.ExportColumns()
			widths := make([]int, len(cols))
			for i, c := range cols {
				widths[i] = c.Width
			}
			data, err := sheet.Write(schema.SheetName, [][]string{schema.Labels()}, widths)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(a.out, "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Page to build the template for")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: the page's export file name)")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var resource, output, onConflict string
	cmd := &cobra.Command{
		Use:   "merge EXISTING INCOMING",
		Short: "Append one workbook onto another the way an append import does",
		Long: `Merge appends the rows of INCOMING to EXISTING. Rows whose key is already
present are conflicts: --on-conflict decides them all at once, or "ask"
prompts for each (o = overwrite, s = skip, c = cancel). A cancelled merge
writes nothing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := lookupSchema(resource)
			if err != nil {
				return err
			}
			resolver, err := a.resolver(onConflict)
			if err != nil {
				return err
			}
			existing, err := readRows(schema, args[0])
			if err != nil {
				return err
			}
			incoming, err := readRows(schema, args[1])
			if err != nil {
				return err
			}

			ed := table.NewEditor(schema, nil)
			ed.Overwrite(existing)
			stats, err := ed.Append(cmd.Context(), incoming, resolver)
			if err != nil {
				return err
			}
			if stats.Cancelled {
				fmt.Fprintln(a.out, "merge cancelled, nothing written")
				return nil
			}

			if output == "" {
				output = schema.FileName
			}
			data, err := sheet.Write(schema.SheetName, ed.Export(), nil)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(a.out, "wrote %s: %d added, %d overwritten, %d skipped\n",
				output, stats.Added, stats.Overwritten, stats.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Page the workbooks are for")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: the page's export file name)")
	cmd.Flags().StringVar(&onConflict, "on-conflict", "ask", "ask, overwrite, skip or cancel")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

// resolver returns the conflict policy named by mode.
func (a *app) resolver(mode string) (table.Resolver, error) {
	switch strings.ToLower(mode) {
	case "ask":
		in := bufio.NewReader(a.in)
		return table.ResolverFunc(func(_ context.Context, c table.Conflict) (table.Decision, error) {
			fmt.Fprintf(a.out, "Row %d of %d: %q already exists. [o]verwrite, [s]kip or [c]ancel? ",
				c.Position, c.Total, c.Key)
			line, err := in.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			if errors.Is(err, io.EOF) && line == "" {
				return table.Cancel, nil
			}
			return table.ParseDecision(line), nil
		}), nil
	case string(table.Overwrite), string(table.Skip), string(table.Cancel):
		d := table.Decision(strings.ToLower(mode))
		return table.ResolverFunc(func(context.Context, table.Conflict) (table.Decision, error) {
			return d, nil
		}), nil
	default:
		return nil, fmt.Errorf("--on-conflict must be ask, overwrite, skip or cancel, got %q", mode)
	}
}

// readRows loads the first sheet of path as rows of schema.
func readRows(schema table.Schema, path string) ([]table.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	matrix, err := sheet.Read(f, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows, err := table.ParseRows(schema, matrix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
