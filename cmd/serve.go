package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/service"
)

var (
	portFlag      int
	hostFlag      string
	agentNameFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run bridge-side services",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	agentCmd = &cobra.Command{
		Use:   "agent",
		Short: "Serve a local echo agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			verifier, err := authFromConfig()

			if err != nil {
				return err
			}

			manager := service.NewEchoTaskManager(
				viper.GetDuration("agent.work_delay"),
			)

			server := service.NewAgentServer(agentCard(), manager, verifier)

			return server.Start(fmt.Sprintf("%s:%d", hostFlag, portFlag))
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(agentCmd)

	serveCmd.PersistentFlags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.PersistentFlags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")

	agentCmd.Flags().StringVarP(&agentNameFlag, "name", "n", "", "Name for the agent (defaults to agent.name from the config)")
}

func agentCard() a2a.AgentCard {
	name := agentNameFlag

	if name == "" {
		name = viper.GetString("agent.name")
	}

	description := viper.GetString("agent.description")

	return a2a.AgentCard{
		Name:        name,
		Description: &description,
		URL:         fmt.Sprintf("http://%s:%d", hostFlag, portFlag),
		Version:     viper.GetString("agent.version"),
		Skills: []a2a.AgentSkill{
			{
				ID:   "echo",
				Name: "Echo",
				Tags: []string{"text", "demo"},
			},
		},
	}
}

var longServe = `
Serve bridge-side services.

Examples:
  # Serve the echo agent on the default port
  a2a-bridge serve agent

  # Serve the echo agent on port 8080 with a custom name
  a2a-bridge serve agent --port 8080 --name "My Agent"
`
