package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream booking and question changes as they happen",
	GroupID: "bookings",
	Args:    cobra.NoArgs,
	// Watching only needs the bus.
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		subject, _ := cmd.Flags().GetString("subject")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("QUILL_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemote().NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL; pass --nats, set QUILL_NATS_URL or add one to the active remote")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return watchNATS(ctx, cmd.OutOrStdout(), natsURL, topic, subject)
	},
}

func watchNATS(ctx context.Context, w io.Writer, natsURL, topic, subject string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(topic, subject)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()
	defer func() {
		if n := sub.Dropped(); n > 0 {
			slog.Warn("messages dropped while printing", "count", n)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := printMessage(w, msg, time.Now()); err != nil {
				return err
			}
		}
	}
}

// printMessage writes one bus message, as a JSON line with --json. The
// publisher's timestamp wins over the receive time at.
func printMessage(w io.Writer, msg events.Message, at time.Time) error {
	if !msg.Published.IsZero() {
		at = msg.Published
	}
	if jsonOutput {
		line, err := json.Marshal(struct {
			Topic   string          `json:"topic"`
			Subject string          `json:"subject,omitempty"`
			Time    time.Time       `json:"time"`
			Data    json.RawMessage `json:"data"`
		}{msg.Topic, msg.Subject, at, json.RawMessage(msg.Data)})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(line))
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s\n", ui.RenderMuted(at.Local().Format("15:04:05")), events.Describe(msg))
	return err
}

func init() {
	watchCmd.Flags().String("topic", events.TopicAll, "NATS subject to subscribe to (wildcards allowed)")
	watchCmd.Flags().String("subject", "", "only show events about this event id or booking hash id")
	watchCmd.Flags().String("nats", "", "NATS URL (defaults to QUILL_NATS_URL or the active remote)")
}
