package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
)

var (
	serverFlag  string
	sessionFlag string
	pollFlag    bool

	sendCmd = &cobra.Command{
		Use:   "send [message]",
		Short: "Send a one-shot task to an agent",
		Long:  longSend,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := serverFlag

			if server == "" {
				server = viper.GetString("a2a.server_url")
			}

			opts, err := clientOptions()

			if err != nil {
				return err
			}

			client := a2a.NewClient(server, opts...)
			defer client.Close()

			card, err := client.Card(cmd.Context())

			if err != nil {
				return fmt.Errorf("fetching agent card: %w", err)
			}

			fmt.Println(card.String())

			session := client.Session(sessionFlag)
			log.Info("sending task", "session_id", session.ID(), "server", server)

			task, err := session.Send(
				cmd.Context(),
				a2a.NewTextMessage(a2a.RoleUser, strings.Join(args, " ")),
			)

			if err != nil {
				return err
			}

			if pollFlag {
				pollCtx, cancel := context.WithTimeout(
					cmd.Context(), viper.GetDuration("bridge.poll_budget"),
				)
				defer cancel()

				polled, err := session.Poll(
					pollCtx, viper.GetDuration("bridge.poll_interval"),
				)

				if polled != nil {
					task = polled
				}

				if err != nil {
					log.Warn("polling stopped early", "error", err)
				}
			}

			fmt.Println(task.String())

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&serverFlag, "server", "s", "", "Agent server URL (defaults to a2a.server_url from the config)")
	sendCmd.Flags().StringVar(&sessionFlag, "session", "", "Session ID to continue an earlier conversation")
	sendCmd.Flags().BoolVar(&pollFlag, "poll", true, "Poll until the task settles")
}

var longSend = `
Send a one-shot task to an A2A agent and print the result.

Examples:
  # Send a message to the configured default server
  a2a-bridge send "summarize the quarterly numbers"

  # Target a specific agent server and skip polling
  a2a-bridge send --server http://agent.internal:3210 --poll=false "ping"
`
