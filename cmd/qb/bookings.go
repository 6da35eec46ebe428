package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/quillbooking/internal/client"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/spf13/cobra"
)

var bookingsCmd = &cobra.Command{
	Use:     "bookings",
	Short:   "List, inspect and cancel bookings",
	GroupID: "bookings",
}

var bookingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventID, _ := cmd.Flags().GetString("event")
		status, _ := cmd.Flags().GetStringSlice("status")
		sort, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		for _, s := range status {
			if !model.BookingStatus(s).IsValid() {
				return fmt.Errorf("invalid status %q (must be %s or %s)", s, model.BookingScheduled, model.BookingCancelled)
			}
		}

		resp, err := quillClient.ListBookings(context.Background(), &client.ListBookingsRequest{
			EventID: eventID,
			Status:  status,
			Sort:    sort,
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printBookingList(cmd.OutOrStdout(), resp.Bookings, resp.Total)
		return nil
	},
}

var bookingsShowCmd = &cobra.Command{
	Use:   "show <hash-id>",
	Short: "Show a booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := quillClient.GetBooking(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		printBooking(cmd.OutOrStdout(), b)
		return nil
	},
}

var bookingsCancelCmd = &cobra.Command{
	Use:   "cancel <hash-id>",
	Short: "Cancel a scheduled booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := quillClient.CancelBooking(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "booking %s cancelled\n", b.HashID)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:     "audit <event-id|hash-id>",
	Short:   "Show the change history of an event or booking",
	GroupID: "bookings",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := quillClient.GetAudit(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evts)
		}
		printAudit(cmd.OutOrStdout(), evts)
		return nil
	},
}

func init() {
	bookingsListCmd.Flags().String("event", "", "only bookings of this event")
	bookingsListCmd.Flags().StringSlice("status", nil, "filter by status (scheduled, cancelled)")
	bookingsListCmd.Flags().String("sort", "-start_time", "sort column, '-' prefix for descending")
	bookingsListCmd.Flags().Int("limit", 50, "maximum number of bookings")
	bookingsListCmd.Flags().Int("offset", 0, "number of bookings to skip")

	bookingsCmd.AddCommand(bookingsListCmd)
	bookingsCmd.AddCommand(bookingsShowCmd)
	bookingsCmd.AddCommand(bookingsCancelCmd)
}
