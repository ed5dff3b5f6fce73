package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/skydb/pkg/schema"
)

func newPropertyCmd(a *app) *cobra.Command {
	propertyCmd := &cobra.Command{
		Use:   "property",
		Short: "Manage the named properties of the data directory",
		Long: `A property names an event data key and fixes the type its values must
parse as. Once a property exists, --data accepts its name in place of the
numeric key.`,
	}

	var (
		dataType  string
		transient bool
	)
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a property under the lowest free key",
		Long: `Create a property under the lowest free key.

Examples:
  sky property add page
  sky property add price --type float
  sky property add mobile --type boolean --transient`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := schema.ParseDataType(dataType)
			if err != nil {
				return err
			}
			p, err := a.schema.CreateProperty(args[0], transient, dt)
			if err != nil {
				return err
			}
			if err := a.schema.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created property %s (key %d, %s)\n", p.Name, p.ID, p.DataType)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&dataType, "type", "t", string(schema.String), "Data type: string, factor, integer, float or boolean")
	addCmd.Flags().BoolVar(&transient, "transient", false, "Values describe only the event they are set on")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every property by key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tTYPE\tTRANSIENT")
			for _, p := range a.schema.Properties() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", p.ID, p.Name, p.DataType, p.Transient)
			}
			return w.Flush()
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a property",
		Long: `Delete a property. Stored events keep their values under the freed
key, which the next new property reuses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.schema.DeleteProperty(args[0]); err != nil {
				return err
			}
			if err := a.schema.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted property %s\n", args[0])
			return nil
		},
	}

	propertyCmd.AddCommand(addCmd, listCmd, deleteCmd)
	return propertyCmd
}
