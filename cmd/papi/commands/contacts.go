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

// NewContactsCommand creates the contacts command group
func NewContactsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage contacts",
	}

	cmd.AddCommand(newContactsListCommand())
	cmd.AddCommand(newContactsGetCommand())
	cmd.AddCommand(newContactsCreateCommand())

	return cmd
}

func newContactsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			list, err := client.Contacts().List(context.Background(), papi.NewQueryParams().WithSort("name"))
			if err != nil {
				return fmt.Errorf("failed to list contacts: %w", err)
			}

			return outputContacts(list.Data, list.Meta)
		},
	}

	return cmd
}

func newContactsGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get CONTACT_ID",
		Short: "Show a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return ErrContactIDRequired
			}

			client, err := newClient()
			if err != nil {
				return err
			}

			envelope, err := client.Contacts().Get(context.Background(), args[0], nil)
			if err != nil {
				return fmt.Errorf("failed to get contact: %w", err)
			}

			decoded, err := decodeForOutput[papi.ContactAttributes](envelope.Data)
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
			_ = table.Append("ID", decoded.ID)
			_ = table.Append("Name", decoded.Attributes.Name)
			_ = table.Append("Email", decoded.Attributes.Email)
			_ = table.Append("VAT ID", decoded.Attributes.VATID)
			_ = table.Render()

			return nil
		},
	}

	return cmd
}

func newContactsCreateCommand() *cobra.Command {
	var (
		name  string
		email string
		vatID string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			envelope, err := client.Contacts().Create(context.Background(), &papi.ContactAttributes{
				Name:  name,
				Email: email,
				VATID: vatID,
			})
			if err != nil {
				return fmt.Errorf("failed to create contact: %w", err)
			}

			fmt.Printf("Created contact %s\n", envelope.Data.ID)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "contact name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&vatID, "vat-id", "", "VAT identifier")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func outputContacts(resources []papi.ResourceObject, meta papi.ListMeta) error {
	decoded := make([]decodedResource[papi.ContactAttributes], 0, len(resources))

	for _, obj := range resources {
		d, err := decodeForOutput[papi.ContactAttributes](obj)
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
	}

	if len(decoded) == 0 {
		_, _ = os.Stdout.WriteString("No contacts found\n")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Email", "VAT ID")

	for _, contact := range decoded {
		_ = table.Append(contact.ID, contact.Attributes.Name, contact.Attributes.Email, contact.Attributes.VATID)
	}

	_ = table.Render()

	if meta.TotalPages > 1 {
		_, _ = fmt.Fprintf(os.Stdout, "\nShowing page %d of %d.\n", meta.CurrentPage, meta.TotalPages)
	}

	return nil
}
