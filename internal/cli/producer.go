package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/hunetmoducoding/rsmq-go/pkg/rsmq"
	"github.com/spf13/cobra"
)

// NewProducerCommand constructs the rsmq-producer root command.
func NewProducerCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rsmq-producer",
		Short: "Send messages to an rsmq queue",
	}
	conn := AddConnectionFlags(root)
	root.AddCommand(newSendCommand(conn))
	return root
}

// newSendCommand constructs the `send` subcommand. Without --message it
// reads one payload per line from stdin until EOF.
func newSendCommand(conn *Connection) *cobra.Command {
	var (
		queue    string
		message  string
		delaySec int64
	)

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if queue == "" {
				return &rsmq.InvalidParameterError{Field: "queue", Value: queue, Reason: "--queue is required"}
			}

			var opts []rsmq.SendOption
			if cmd.Flags().Changed("delay") {
				d, err := seconds("delay", delaySec)
				if err != nil {
					return err
				}
				opts = append(opts, rsmq.WithDelay(d))
			}

			session, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()
			client := session.Client

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("message") {
				id, err := client.SendMessage(cmd.Context(), queue, []byte(message), opts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), rsmq.MaxMaxSize*16)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				id, err := client.SendMessage(cmd.Context(), queue, []byte(line), opts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			return nil
		},
	}
	sendCmd.Flags().StringVarP(&queue, "queue", "q", "", "Queue name (required)")
	sendCmd.Flags().StringVarP(&message, "message", "m", "", "Message body; read from stdin, one per line, if omitted")
	sendCmd.Flags().Int64Var(&delaySec, "delay", 0, "Delay in seconds before the message is visible (default: the queue's delay)")
	return sendCmd
}
