package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/skydb/pkg/event"
	"github.com/ssargent/skydb/pkg/schema"
)

// eventFlags are shared by every command that builds an event
type eventFlags struct {
	timestamp int64
	objectID  uint64
	actionID  uint32
	data      []string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&f.timestamp, "timestamp", "t", 0, "Event time in Unix milliseconds (default now)")
	cmd.Flags().Uint64VarP(&f.objectID, "object", "o", 0, "Object id")
	cmd.Flags().Uint32VarP(&f.actionID, "action", "a", 0, "Action id (0 = no action)")
	cmd.Flags().StringArrayVar(&f.data, "data", nil, "Data entry as property=value or key=value, repeatable")
}

// build creates the event the flags describe. Named entries are resolved and
// type checked through s; numeric keys are stored as given.
func (f *eventFlags) build(cmd *cobra.Command, s *schema.Schema) (*event.Event, error) {
	ts := event.Timestamp(f.timestamp)
	if !cmd.Flags().Changed("timestamp") {
		ts = event.FromTime(time.Now())
	}

	e := event.New(ts, event.ObjectID(f.objectID), event.ActionID(f.actionID))
	for _, kv := range f.data {
		if err := setDataEntry(e, s, kv); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// setDataEntry applies "name=value" or "key=value", where key is a 16-bit
// unsigned integer
func setDataEntry(e *event.Event, s *schema.Schema, entry string) error {
	k, v, ok := strings.Cut(entry, "=")
	if !ok {
		return fmt.Errorf("invalid data entry %q: expected name=value", entry)
	}
	k = strings.TrimSpace(k)

	if key, err := strconv.ParseUint(k, 10, 16); err == nil {
		e.SetData(event.Key(key), v)
		return nil
	} else if _, numeric := strconv.ParseUint(k, 10, 64); numeric == nil {
		return fmt.Errorf("invalid data key %q: %w", k, err)
	}

	if s == nil {
		return fmt.Errorf("unknown property %q", k)
	}
	return s.SetData(e, k, v)
}

func parseObjectID(s string) (event.ObjectID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return event.ObjectID(id), nil
}
