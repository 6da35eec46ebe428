package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/client"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:     "event",
	Short:   "Show and configure bookable events",
	GroupID: "fields",
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		metas, err := quillClient.ListEvents(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), metas)
		}
		printEventList(cmd.OutOrStdout(), metas)
		return nil
	},
}

var eventShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show an event's name, durations and locations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, err := quillClient.GetEventMeta(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), meta)
		}
		printEventMeta(cmd.OutOrStdout(), meta)
		return nil
	},
}

var eventSetCmd = &cobra.Command{
	Use:   "set <event-id>",
	Short: "Create or update an event",
	Long: `Create or update an event's booking settings.

Without --file the current settings are fetched and the given flags are
applied on top. --file reads a complete YAML document instead:

  name: Intro call
  duration: 30
  durations: [30, 60]
  locations:
    - type: online
      label: Video call
    - type: attendee_phone
      label: Phone call
      fields:
        - id: location-data
          type: phone
          label: Your phone number
          required: true
          order: 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		file, _ := cmd.Flags().GetString("file")

		var meta *model.EventMeta
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			meta = &model.EventMeta{}
			if err := unmarshalYAML(data, meta); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
		} else {
			current, err := quillClient.GetEventMeta(ctx, args[0])
			var apiErr *client.APIError
			switch {
			case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
				current = &model.EventMeta{}
			case err != nil:
				return err
			}
			meta = current
		}
		meta.ID = args[0]

		if err := applyEventFlags(cmd, meta); err != nil {
			return err
		}
		saved, err := quillClient.SetEventMeta(ctx, meta)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), saved)
		}
		printEventMeta(cmd.OutOrStdout(), saved)
		return nil
	},
}

// applyEventFlags overlays the flags the user set onto meta. A --location
// value is type[:label]; repeating the flag replaces the whole list.
func applyEventFlags(cmd *cobra.Command, meta *model.EventMeta) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		meta.Name, _ = flags.GetString("name")
	}
	if flags.Changed("duration") {
		meta.Duration, _ = flags.GetInt("duration")
	}
	if flags.Changed("durations") {
		meta.Durations, _ = flags.GetIntSlice("durations")
	}
	if flags.Changed("location") {
		values, _ := flags.GetStringArray("location")
		locs := make([]model.LocationOption, 0, len(values))
		for _, arg := range values {
			typ, label, _ := strings.Cut(arg, ":")
			typ = strings.TrimSpace(typ)
			if typ == "" {
				return fmt.Errorf("invalid --location %q: type is required", arg)
			}
			// Keep sub-fields already configured for this type.
			loc := model.LocationOption{Type: typ, Label: strings.TrimSpace(label)}
			if prev := model.FindLocation(meta.Locations, typ); prev != nil {
				loc.Fields = prev.Clone().Fields
				if loc.Label == "" {
					loc.Label = prev.Label
				}
			}
			if loc.Label == "" {
				loc.Label = typ
			}
			locs = append(locs, loc)
		}
		meta.Locations = locs
	}
	return nil
}

func init() {
	eventSetCmd.Flags().StringP("file", "f", "", "read the event from a YAML file")
	eventSetCmd.Flags().String("name", "", "event name")
	eventSetCmd.Flags().Int("duration", 0, "default length in minutes")
	eventSetCmd.Flags().IntSlice("durations", nil, "selectable lengths in minutes")
	eventSetCmd.Flags().StringArray("location", nil, "meeting location as type[:label] (repeatable)")

	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventShowCmd)
	eventCmd.AddCommand(eventSetCmd)
}
