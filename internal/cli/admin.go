package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/spf13/cobra"
)

// NewAdminCommand constructs the rsmq-admin root command and subcommands.
func NewAdminCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rsmq-admin",
		Short: "Manage rsmq queues",
		Long: `Manage rsmq queues.

Queue Commands:
  create      Create a queue
  delete      Delete a queue and every message in it
  attributes  Show a queue's settings and counters
  set         Change a queue's visibility timeout, delay or max size
  list        List queue names

Monitoring:
  stats       Show attributes of every queue

Dead Letters:
  redrive     Move ready messages from one queue to another`,
	}
	conn := AddConnectionFlags(root)
	root.PersistentFlags().Bool("json", false, "Output as JSON")

	root.AddCommand(
		newCreateCommand(conn),
		newDeleteCommand(conn),
		newAttributesCommand(conn),
		newSetCommand(conn),
		newListCommand(conn),
		newStatsCommand(conn),
		newRedriveCommand(conn),
	)
	return root
}

// queueView is the JSON and table shape of rsmq.QueueAttributes.
type queueView struct {
	Name              string    `json:"name"`
	VisibilityTimeout int64     `json:"visibility_timeout_s"`
	Delay             int64     `json:"delay_s"`
	MaxSize           int       `json:"max_size"`
	Messages          int64     `json:"messages"`
	HiddenMessages    int64     `json:"hidden_messages"`
	TotalSent         int64     `json:"total_sent"`
	TotalReceived     int64     `json:"total_received"`
	Created           time.Time `json:"created"`
	Modified          time.Time `json:"modified"`
}

func newQueueView(a *rsmq.QueueAttributes) queueView {
	return queueView{
		Name:              a.Name,
		VisibilityTimeout: int64(a.VisibilityTimeout / time.Second),
		Delay:             int64(a.Delay / time.Second),
		MaxSize:           a.MaxSize,
		Messages:          a.Messages,
		HiddenMessages:    a.HiddenMessages,
		TotalSent:         a.TotalSent,
		TotalReceived:     a.TotalReceived,
		Created:           a.Created,
		Modified:          a.Modified,
	}
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func requireQueue(name string) error {
	if name == "" {
		return &rsmq.InvalidParameterError{Field: "queue", Value: name, Reason: "--queue is required"}
	}
	return nil
}

// queueSettingFlags registers --visibility, --delay and --max-size.
func queueSettingFlags(cmd *cobra.Command, visibility, delay *int64, maxSize *int) {
	defaults := rsmq.DefaultQueueConfig()
	cmd.Flags().Int64Var(visibility, "visibility", int64(defaults.VisibilityTimeout/time.Second), "Visibility timeout in seconds")
	cmd.Flags().Int64Var(delay, "delay", int64(defaults.Delay/time.Second), "Delay in seconds for new messages")
	cmd.Flags().IntVar(maxSize, "max-size", defaults.MaxSize, "Max payload bytes, 1024-65536 or -1 for unlimited")
}

// newCreateCommand constructs the `create` subcommand.
func newCreateCommand(conn *Connection) *cobra.Command {
	var (
		queue      string
		visibility int64
		delay      int64
		maxSize    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireQueue(queue); err != nil {
				return err
			}
			vt, err := seconds("visibility", visibility)
			if err != nil {
				return err
			}
			d, err := seconds("delay", delay)
			if err != nil {
				return err
			}

			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			cfg := rsmq.QueueConfig{
				VisibilityTimeout: vt,
				Delay:             d,
				MaxSize:           maxSize,
			}
			if err := session.Client.CreateQueue(cmd.Context(), queue, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created queue '%s'\n", queue)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Queue name (required)")
	queueSettingFlags(cmd, &visibility, &delay, &maxSize)
	return cmd
}

// newDeleteCommand constructs the `delete` subcommand.
func newDeleteCommand(conn *Connection) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a queue and its messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireQueue(queue); err != nil {
				return err
			}
			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Client.DeleteQueue(cmd.Context(), queue); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted queue '%s'\n", queue)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Queue name (required)")
	return cmd
}

// newAttributesCommand constructs the `attributes` subcommand.
func newAttributesCommand(conn *Connection) *cobra.Command {
	var queue string
	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "Show queue settings and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireQueue(queue); err != nil {
				return err
			}
			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			attrs, err := session.Client.GetQueueAttributes(cmd.Context(), queue)
			if err != nil {
				return err
			}
			return printAttributes(cmd, newQueueView(attrs))
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Queue name (required)")
	return cmd
}

func printAttributes(cmd *cobra.Command, v queueView) error {
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return writeJSON(out, v)
	}

	fmt.Fprintf(out, "Queue %s:\n", v.Name)
	fmt.Fprintf(out, "  Visibility:  %ds\n", v.VisibilityTimeout)
	fmt.Fprintf(out, "  Delay:       %ds\n", v.Delay)
	fmt.Fprintf(out, "  Max size:    %d\n", v.MaxSize)
	fmt.Fprintf(out, "  Messages:    %d (%d hidden)\n", v.Messages, v.HiddenMessages)
	fmt.Fprintf(out, "  Total sent:  %d\n", v.TotalSent)
	fmt.Fprintf(out, "  Total recv:  %d\n", v.TotalReceived)
	fmt.Fprintf(out, "  Created:     %s\n", v.Created.Format(time.RFC3339))
	fmt.Fprintf(out, "  Modified:    %s\n", v.Modified.Format(time.RFC3339))
	return nil
}

// newSetCommand constructs the `set` subcommand. Only flags given on the
// command line are changed.
func newSetCommand(conn *Connection) *cobra.Command {
	var (
		queue      string
		visibility int64
		delay      int64
		maxSize    int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change queue settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireQueue(queue); err != nil {
				return err
			}

			var update rsmq.QueueAttributesUpdate
			if cmd.Flags().Changed("visibility") {
				d, err := seconds("visibility", visibility)
				if err != nil {
					return err
				}
				update.VisibilityTimeout = &d
			}
			if cmd.Flags().Changed("delay") {
				d, err := seconds("delay", delay)
				if err != nil {
					return err
				}
				update.Delay = &d
			}
			if cmd.Flags().Changed("max-size") {
				update.MaxSize = &maxSize
			}

			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			attrs, err := session.Client.SetQueueAttributes(cmd.Context(), queue, update)
			if err != nil {
				return err
			}
			return printAttributes(cmd, newQueueView(attrs))
		},
	}
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Queue name (required)")
	queueSettingFlags(cmd, &visibility, &delay, &maxSize)
	return cmd
}

// newListCommand constructs the `list` subcommand.
func newListCommand(conn *Connection) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queue names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			names, err := session.Client.ListQueues(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, names)
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}

// newStatsCommand constructs the `stats` subcommand.
func newStatsCommand(conn *Connection) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attributes of every queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			stats, err := rsmq.NewAdmin(session.Client).Stats(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]queueView, 0, len(stats))
			for i := range stats {
				views = append(views, newQueueView(&stats[i]))
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, views)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tMESSAGES\tHIDDEN\tSENT\tRECEIVED\tVT\tDELAY\tMAXSIZE")
			for _, v := range views {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%ds\t%ds\t%d\n",
					v.Name, v.Messages, v.HiddenMessages, v.TotalSent, v.TotalReceived,
					v.VisibilityTimeout, v.Delay, v.MaxSize)
			}
			return w.Flush()
		},
	}
}

// newRedriveCommand constructs the `redrive` subcommand.
func newRedriveCommand(conn *Connection) *cobra.Command {
	var (
		from  string
		to    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "redrive",
		Short: "Move ready messages from a dead-letter queue back to a work queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireQueue(from); err != nil {
				return err
			}
			if err := requireQueue(to); err != nil {
				return err
			}
			if limit < 1 {
				return &rsmq.InvalidParameterError{Field: "max", Value: limit, Reason: "must be >= 1"}
			}

			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			admin := rsmq.NewAdmin(session.Client, rsmq.WithLogger(conn.Logger()))
			moved, err := admin.Redrive(cmd.Context(), from, to, limit)
			if err != nil {
				return fmt.Errorf("redrive stopped after %d messages: %w", moved, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Redrove %d messages from '%s' to '%s'\n", moved, from, to)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source queue (required)")
	cmd.Flags().StringVar(&to, "to", "", "Target queue (required)")
	cmd.Flags().IntVar(&limit, "max", 100, "Maximum number of messages to move")
	return cmd
}
