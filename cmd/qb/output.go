package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/ui"
)

const timeLayout = "2006-01-02 15:04"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// printFieldsTable prints a field list in order. Fields with schema errors
// are followed by their messages.
func printFieldsTable(w io.Writer, list []model.FieldSchema, errs map[string][]model.FieldError) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tID\tGROUP\tTYPE\tREQUIRED\tENABLED\tLABEL")
	for _, f := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Order,
			f.ID,
			ui.RenderGroup(f.Group),
			f.Type,
			yesNo(f.Required),
			yesNo(f.Enabled),
			ui.Truncate(f.Label, ui.TextColumn()),
		)
		for _, fe := range errs[f.ID] {
			fmt.Fprintf(tw, "\t\t\t\t\t\t%s\n", ui.RenderError(fe.Message))
		}
		if f.ID == model.FieldLocationSelect {
			for _, loc := range f.Settings.Locations {
				fmt.Fprintf(tw, "\t  %s\t\t\t\t\t%s\n", ui.RenderMuted(loc.Type), loc.Label)
			}
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d fields\n", len(list))
}

func printEventMeta(w io.Writer, m *model.EventMeta) {
	fmt.Fprintf(w, "ID:         %s\n", m.ID)
	fmt.Fprintf(w, "Name:       %s\n", m.Name)
	fmt.Fprintf(w, "Duration:   %d min\n", m.Duration)
	if len(m.Durations) > 0 {
		fmt.Fprintf(w, "Durations:  %s\n", joinInts(m.Durations))
	}
	for i, loc := range m.Locations {
		label := "Locations:  "
		if i > 0 {
			label = "            "
		}
		fmt.Fprintf(w, "%s%s (%s)", label, loc.Label, loc.Type)
		if ids := loc.FieldIDs(); len(ids) > 0 {
			fmt.Fprintf(w, " %s", ui.RenderMuted("asks "+strings.Join(ids, ", ")))
		}
		fmt.Fprintln(w)
	}
}

func printEventList(w io.Writer, metas []*model.EventMeta) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDURATION\tLOCATIONS")
	for _, m := range metas {
		types := make([]string, len(m.Locations))
		for i, l := range m.Locations {
			types[i] = l.Type
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, ui.Truncate(m.Name, ui.TextColumn()), m.Duration, strings.Join(types, ","))
	}
	tw.Flush()
}

func printBooking(w io.Writer, b *model.Booking) {
	fmt.Fprintf(w, "Hash ID:    %s\n", b.HashID)
	fmt.Fprintf(w, "Event:      %s\n", b.EventID)
	fmt.Fprintf(w, "Status:     %s\n", ui.RenderStatus(b.Status))
	fmt.Fprintf(w, "Start:      %s (%s)\n", b.StartTime.Format(timeLayout), b.Timezone)
	fmt.Fprintf(w, "Duration:   %d min\n", b.Duration)
	for i, inv := range b.Invitees {
		label := "Invitees:   "
		if i > 0 {
			label = "            "
		}
		fmt.Fprintf(w, "%s%s <%s>\n", label, inv.Name, inv.Email)
	}
	if b.Location.Type != "" {
		fmt.Fprintf(w, "Location:   %s\n", describeLocation(b.Location))
	}
	if len(b.Fields) > 0 {
		fmt.Fprintln(w, "Answers:")
		keys := make([]string, 0, len(b.Fields))
		for k := range b.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, b.Fields[k])
		}
	}
	if !b.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At: %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func describeLocation(l model.LocationDescriptor) string {
	s := l.Type
	if l.Label != "" {
		s = l.Label + " (" + l.Type + ")"
	}
	keys := make([]string, 0, len(l.Fields))
	for k := range l.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s += fmt.Sprintf(", %s=%v", k, l.Fields[k])
	}
	return s
}

func printBookingList(w io.Writer, bookings []*model.Booking, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH ID\tSTATUS\tEVENT\tSTART\tDURATION\tINVITEE")
	for _, b := range bookings {
		invitee := ""
		if len(b.Invitees) > 0 {
			invitee = b.Invitees[0].Email
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			b.HashID,
			ui.RenderStatus(b.Status),
			b.EventID,
			b.StartTime.Format(timeLayout),
			b.Duration,
			invitee,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d bookings (%d total)\n", len(bookings), total)
}

func printAudit(w io.Writer, evts []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tACTOR\tCHANGE")
	for _, e := range evts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Local().Format(timeLayout), e.Actor, events.Describe(events.FromRecord(e)))
	}
	tw.Flush()
}

func printFieldErrors(w io.Writer, errs []model.FieldError) {
	for _, fe := range errs {
		fmt.Fprintf(w, "  %s %s\n", ui.RenderError(fe.Field+":"), fe.Message)
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
