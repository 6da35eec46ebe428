package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newRemoteCmd builds the remote command tree. Remote subcommands only touch
// the local remotes file.
func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "remote",
		Short:             "Manage named QuillBooking servers",
		GroupID:           "system",
		PersistentPreRunE: skipClient,
	}
	cmd.AddCommand(
		newRemoteAddCmd(),
		newRemoteUseCmd(),
		newRemoteListCmd(),
		newRemoteShowCmd(),
		newRemoteRenameCmd(),
		newRemoteRemoveCmd(),
	)
	return cmd
}

func newRemoteAddCmd() *cobra.Command {
	var (
		r   Remote
		use bool
	)
	cmd := &cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a remote, or update one keeping the settings not given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			f, err := openRemotesFile()
			if err != nil {
				return err
			}
			return f.update(func(cfg *RemotesConfig) error {
				next, existed := cfg.Remotes[name]
				next.URL = args[1]
				flags := cmd.Flags()
				if flags.Changed("token") {
					next.Token = r.Token
				}
				if flags.Changed("actor") {
					next.Actor = r.Actor
				}
				if flags.Changed("nats") {
					next.NATSURL = r.NATSURL
				}
				if err := next.Validate(); err != nil {
					return fmt.Errorf("remote %q: %w", name, err)
				}
				cfg.Remotes[name] = next

				verb := "added"
				if existed {
					verb = "updated"
				}
				// The first remote becomes active without a separate use.
				if use || cfg.Active == "" {
					cfg.Active = name
					verb += " and active"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "remote %q %s (%s)\n", name, verb, next.URL)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&r.Token, "token", "", "bearer token for admin routes")
	cmd.Flags().StringVar(&r.Actor, "actor", "", "name recorded in the audit log for changes made through this remote")
	cmd.Flags().StringVar(&r.NATSURL, "nats", "", "NATS URL for qb watch")
	cmd.Flags().BoolVar(&use, "use", false, "make this the active remote")
	return cmd
}

func newRemoteUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Set the active remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openRemotesFile()
			if err != nil {
				return err
			}
			return f.update(func(cfg *RemotesConfig) error {
				if _, err := cfg.lookup(args[0]); err != nil {
					return err
				}
				cfg.Active = args[0]
				fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", args[0])
				return nil
			})
		},
	}
}

func newRemoteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remotes; the active one is starred",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := openRemotesFile()
			if err != nil {
				return err
			}
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if len(cfg.Remotes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured; add one with 'qb remote add <name> <url>'")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  NAME\tURL\tACTOR\tTOKEN")
			for _, name := range cfg.names() {
				r := cfg.Remotes[name]
				marker := "  "
				if name == cfg.Active {
					marker = "* "
				}
				actor := r.Actor
				if actor == "" {
					actor = "-"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, r.URL, actor, maskToken(r.Token))
			}
			return w.Flush()
		},
	}
}

func newRemoteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [<name>]",
		Short: "Show a remote (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openRemotesFile()
			if err != nil {
				return err
			}
			cfg, err := f.load()
			if err != nil {
				return err
			}
			name := cfg.Active
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return fmt.Errorf("no active remote; specify a name or run 'qb remote use <name>'")
			}
			r, err := cfg.lookup(name)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if name == cfg.Active {
				name += " (active)"
			}
			for _, row := range [][2]string{
				{"name", name},
				{"url", r.URL},
				{"actor", r.Actor},
				{"token", maskToken(r.Token)},
				{"nats_url", r.NATSURL},
			} {
				if row[1] != "" {
					fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
				}
			}
			return w.Flush()
		},
	}
}

func newRemoteRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := args[0], args[1]
			f, err := openRemotesFile()
			if err != nil {
				return err
			}
			return f.update(func(cfg *RemotesConfig) error {
				r, err := cfg.lookup(from)
				if err != nil {
					return err
				}
				if _, taken := cfg.Remotes[to]; taken {
					return fmt.Errorf("remote %q already exists", to)
				}
				delete(cfg.Remotes, from)
				cfg.Remotes[to] = r
				if cfg.Active == from {
					cfg.Active = to
				}
				fmt.Fprintf(cmd.OutOrStdout(), "remote %q renamed to %q\n", from, to)
				return nil
			})
		},
	}
}

func newRemoteRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openRemotesFile()
			if err != nil {
				return err
			}
			return f.update(func(cfg *RemotesConfig) error {
				if _, err := cfg.lookup(args[0]); err != nil {
					return err
				}
				delete(cfg.Remotes, args[0])
				if cfg.Active == args[0] {
					cfg.Active = ""
				}
				fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", args[0])
				return nil
			})
		},
	}
}
