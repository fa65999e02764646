package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paperledge/papi/pkg/papi"
)

// NewInvoicesCommand creates the invoices command group
func NewInvoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Manage invoices",
	}

	cmd.AddCommand(newInvoicesListCommand())
	cmd.AddCommand(newInvoicesGetCommand())
	cmd.AddCommand(newInvoicesRenderCommand())

	return cmd
}

func newInvoicesListCommand() *cobra.Command {
	var (
		status   string
		allPages bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			ctx := context.Background()
			params := papi.NewQueryParams().WithSort("-issued_on")

			if status != "" {
				params = params.WithFilter("status", status)
			}

			list, err := client.Invoices().List(ctx, params)
			if err != nil {
				return fmt.Errorf("failed to list invoices: %w", err)
			}

			resources := list.Data

			if allPages {
				for page := 2; page <= list.Meta.TotalPages; page++ {
					more, err := client.Invoices().List(ctx, params.WithPage(page))
					if err != nil {
						return fmt.Errorf("failed to fetch page %d: %w", page, err)
					}

					resources = append(resources, more.Data...)
				}
			}

			return outputInvoices(resources, list.Meta, allPages)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, open, paid, archived, cancelled)")
	cmd.Flags().BoolVar(&allPages, "all", false, "fetch all pages")

	return cmd
}

func newInvoicesGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get INVOICE_ID",
		Short: "Show an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return ErrInvoiceIDRequired
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			envelope, err := client.Invoices().Get(context.Background(), args[0], papi.NewQueryParams().WithInclude("contact"))
			if err != nil {
				return fmt.Errorf("failed to get invoice: %w", err)
			}

			return outputInvoice(envelope)
		},
	}

	return cmd
}

func newInvoicesRenderCommand() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "render INVOICE_ID",
		Short: "Render an invoice document",
		Long:  "Submit an asynchronous document render for an invoice, optionally waiting for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			job, err := client.Invoices().Render(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to submit render: %w", err)
			}

			if !wait {
				fmt.Printf("Render submitted, job %s (%s)\n", job.ID, job.Status)

				return nil
			}

			result, err := client.Jobs().WaitForCompletion(ctx, job.ID, nil)
			if err != nil {
				return fmt.Errorf("failed waiting for render job: %w", err)
			}

			if !result.Success {
				return fmt.Errorf("render job %s failed: %v", job.ID, result.Errors)
			}

			document, err := client.Invoices().FindRenderedDocument(ctx, args[0])
			if err != nil {
				return fmt.Errorf("render finished but document not found: %w", err)
			}

			attrs, err := papi.DecodeResource[papi.DocumentAttributes](document.Data)
			if err != nil {
				return err
			}

			fmt.Printf("Rendered document %s: %s\n", document.Data.ID, attrs.URL)

			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the render job to finish")

	return cmd
}

func outputInvoices(resources []papi.ResourceObject, meta papi.ListMeta, allPages bool) error {
	decoded := make([]decodedResource[papi.InvoiceAttributes], 0, len(resources))

	for _, obj := range resources {
		d, err := decodeForOutput[papi.InvoiceAttributes](obj)
		if err != nil {
			return err
		}

		decoded = append(decoded, d)
	}

	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		return StandardJSONRenderer(decoded)
	case OutputFormatYAML:
		return StandardYAMLRenderer(decoded)
	default:
		return renderInvoiceTable(decoded, meta, allPages)
	}
}

func renderInvoiceTable(invoices []decodedResource[papi.InvoiceAttributes], meta papi.ListMeta, allPages bool) error {
	if len(invoices) == 0 {
		_, _ = os.Stdout.WriteString("No invoices found\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Number", "Status", "Currency", "Total", "Issued", "Due")

	for _, inv := range invoices {
		a := inv.Attributes
		_ = table.Append(inv.ID, a.Number, a.Status, a.Currency,
			fmt.Sprintf("%d.%02d", a.TotalCents/100, a.TotalCents%100),
			a.IssuedOn, a.DueOn)
	}

	_ = table.Render()

	if !allPages && meta.TotalPages > 1 {
		_, _ = fmt.Fprintf(os.Stdout, "\nShowing page %d of %d. Use --all to fetch all pages.\n", meta.CurrentPage, meta.TotalPages)
	}

	return nil
}

func outputInvoice(envelope *papi.ResourceEnvelope) error {
	decoded, err := decodeForOutput[papi.InvoiceAttributes](envelope.Data)
	if err != nil {
		return err
	}

	output := viper.GetString("output")
	switch output {
	case OutputFormatJSON:
		return StandardJSONRenderer(decoded)
	case OutputFormatYAML:
		return StandardYAMLRenderer(decoded)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	a := decoded.Attributes
	_ = table.Append("ID", decoded.ID)
	_ = table.Append("Number", a.Number)
	_ = table.Append("Status", a.Status)
	_ = table.Append("Currency", a.Currency)
	_ = table.Append("Total", fmt.Sprintf("%d.%02d", a.TotalCents/100, a.TotalCents%100))
	_ = table.Append("Issued", a.IssuedOn)
	_ = table.Append("Due", a.DueOn)

	if contact, err := envelope.GetRelated("contact"); err == nil {
		contactAttrs, err := papi.DecodeResource[papi.ContactAttributes](*contact)
		if err == nil {
			_ = table.Append("Contact", fmt.Sprintf("%s (%s)", contactAttrs.Name, contact.ID))
		}
	}

	_ = table.Render()

	return nil
}
