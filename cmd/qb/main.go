package main

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/client"
	"github.com/alfredjeanlab/quillbooking/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	httpURL    string
	authToken  string
	jsonOutput bool
	noColor    bool
	actor      string

	quillClient client.QuillClient
)

func defaultActor() string {
	if s := os.Getenv("QUILL_ACTOR"); s != "" {
		return s
	}
	if a := activeRemote().Actor; a != "" {
		return a
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultHTTPURL() string {
	if s := os.Getenv("QUILL_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemote().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("QUILL_SERVER"); s != "" {
		return s
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("QUILL_AUTH_TOKEN"); s != "" {
		return s
	}
	return activeRemote().Token
}

var rootCmd = &cobra.Command{
	Use:           "qb <command>",
	Short:         "CLI client for the QuillBooking service",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		c := client.NewHTTPClient(httpURL, authToken)
		c.Actor = actor
		quillClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if quillClient != nil {
			quillClient.Close()
		}
	},
}

// skipClient replaces the root PersistentPreRunE for commands that never
// talk to the HTTP API.
func skipClient(cmd *cobra.Command, args []string) error {
	if noColor || !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for admin routes")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded in the audit log")

	rootCmd.AddGroup(
		&cobra.Group{ID: "fields", Title: "Questions:"},
		&cobra.Group{ID: "bookings", Title: "Bookings:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	// Questions
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(eventCmd)

	// Bookings
	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(bookingsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(newRemoteCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			printFieldErrors(os.Stderr, apiErr.Fields)
		}
		os.Exit(1)
	}
}
