package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/skydb/pkg/event"
)

// eventSink is satisfied by both the segment log and the path storage
type eventSink interface {
	Append(objectID event.ObjectID, events ...*event.Event) error
	Close() error
}

// appendAndClose appends e and closes sink. Writes may sit in a buffer until
// Close, so the event is only stored once Close succeeds.
func appendAndClose(sink eventSink, e *event.Event) error {
	if err := sink.Append(e.ObjectID, e); err != nil {
		_ = sink.Close()
		return fmt.Errorf("failed to append event: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func newAppendCmd(a *app) *cobra.Command {
	var flags eventFlags

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append an event to the segment log",
		Long: `Append a single event for an object to the segment log. Data entries
name a property from the schema, or give a raw numeric key.

Example:
  sky append --object 42 --action 7 --data page=checkout --data 2=mobile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.build(cmd, a.schema)
			if err != nil {
				return err
			}

			s, err := a.openStore()
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

	flags.register(cmd)
	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events [object]",
		Short: "List the events of an object, or every object id",
		Long: `Print every event stored for an object in append order. Without an
argument, print the ids of all objects with events.

Examples:
  sky events
  sky events 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ids, err := s.ObjectIDs()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			objectID, err := parseObjectID(args[0])
			if err != nil {
				return err
			}
			events, err := s.Events(objectID)
			if err != nil {
				return err
			}
			a.printEvents(cmd, events)
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show segment log statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats := s.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Objects:   %d\n", stats.Objects)
			fmt.Fprintf(out, "Blocks:    %d\n", stats.Blocks)
			fmt.Fprintf(out, "Events:    %d\n", stats.Events)
			fmt.Fprintf(out, "Segments:  %d\n", stats.Segments)
			fmt.Fprintf(out, "Data size: %d bytes\n", stats.DataSize)
			return nil
		},
	}
}

func (a *app) printEvents(cmd *cobra.Command, events []*event.Event) {
	out := cmd.OutOrStdout()
	for _, e := range events {
		fmt.Fprintln(out, a.schema.Format(e))
	}
}
