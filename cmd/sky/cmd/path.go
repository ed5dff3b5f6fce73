package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPathCmd(a *app) *cobra.Command {
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Manage object paths in the pebble path storage",
		Long: `A path is the complete event history of one object, stored under a single
key and optionally snappy compressed.`,
	}

	var flags eventFlags
	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Append an event to an object's path",
		Long: `Append an event to an object's path.

Example:
  sky path put --object 42 --action 3 --data page=home`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.build(cmd, a.schema)
			if err != nil {
				return err
			}

			s, err := a.openPaths()
			if err != nil {
				return err
			}
			if err := appendAndClose(s, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appended %s\n", a.schema.Format(e))
			return nil
		},
	}
	flags.register(putCmd)

	getCmd := &cobra.Command{
		Use:   "get <object>",
		Short: "Print an object's path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[0])
			if err != nil {
				return err
			}

			s, err := a.openPaths()
			if err != nil {
				return err
			}
			defer s.Close()

			events, err := s.Events(objectID)
			if err != nil {
				return err
			}
			a.printEvents(cmd, events)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <object>",
		Short: "Delete an object's path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := parseObjectID(args[0])
			if err != nil {
				return err
			}

			s, err := a.openPaths()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(objectID); err != nil {
				return fmt.Errorf("failed to delete path: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted path of object %d\n", objectID)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every object with a stored path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openPaths()
			if err != nil {
				return err
			}
			defer s.Close()

			ids, err := s.ObjectIDs()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	pathCmd.AddCommand(putCmd, getCmd, deleteCmd, listCmd)
	return pathCmd
}
