package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/sheet"
	"github.com/portpilot/portal/internal/table"
	"github.com/portpilot/portal/internal/upstream"
)

func (a *app) pullCmd() *cobra.Command {
	var (
		resource, output string
		apiURL           string
		email, role      string
		timeout          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download a page from the remote API as a workbook",
		Long: `Pull fetches every row of a page, derives container status and writes the
same workbook the portal's export button produces.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := lookupSchema(resource)
			if err != nil {
				return err
			}
			canonical, ok := domain.CanonicalRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			client := upstream.New(apiURL, timeout, upstream.WithLogger(a.log))
			ed := table.NewEditor(schema, client.Resource(schema.Endpoint, upstream.Credentials{
				Email: email,
				Role:  canonical,
			}))
			if err := ed.Load(cmd.Context()); err != nil {
				return err
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
			fmt.Fprintf(a.out, "wrote %s: %d rows\n", output, ed.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&resource, "resource", "r", "", "Page to download")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: the page's export file name)")
	cmd.Flags().StringVar(&apiURL, "api-url", os.Getenv("API_URL"), "Remote API base URL (default $API_URL, then "+upstream.DefaultBaseURL+")")
	cmd.Flags().StringVar(&email, "email", "", "Email sent as the caller")
	cmd.Flags().StringVar(&role, "role", domain.RoleAdmin, "Role sent as the caller")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Remote API timeout")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
