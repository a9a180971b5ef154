package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/auth"
	"github.com/theapemachine/a2a-bridge/pkg/bridge"
	"github.com/theapemachine/a2a-bridge/pkg/pool"
	"github.com/theapemachine/a2a-bridge/pkg/retry"
	"github.com/theapemachine/a2a-bridge/pkg/service"
	"github.com/theapemachine/a2a-bridge/pkg/stores"
	"github.com/theapemachine/a2a-bridge/pkg/stores/s3"
)

var (
	slackCmd = &cobra.Command{
		Use:   "slack",
		Short: "Run the Slack bridge",
		Long:  longSlack,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetReportCaller(true)
			log.SetLevel(log.InfoLevel)

			appToken := os.Getenv("SLACK_APP_TOKEN")
			botToken := os.Getenv("SLACK_BOT_TOKEN")

			if appToken == "" || botToken == "" {
				return cmd.Help()
			}

			ctx, stop := signal.NotifyContext(
				context.Background(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()

			prefs, err := openPrefs()

			if err != nil {
				return err
			}

			defer prefs.Close()

			opts, err := clientOptions()

			if err != nil {
				return err
			}

			factory := func(endpoint string) pool.Client {
				return a2a.NewClient(endpoint, opts...)
			}

			defaultURL := viper.GetString("a2a.server_url")

			clients := pool.New(pool.Config{
				DefaultEndpoint: defaultURL,
				Prefs:           prefs,
				Factory:         factory,
			})

			cleaner := pool.NewCleaner(
				clients,
				viper.GetDuration("pool.cleanup_interval"),
				viper.GetDuration("pool.inactive_timeout"),
			)
			go cleaner.Run(ctx)

			vault, err := openVault(ctx)

			if err != nil {
				return err
			}

			slackService := service.NewSlackService(
				appToken,
				botToken,
				viper.GetInt("slack.max_message_length"),
			)

			chat := bridge.New(bridge.Config{
				Pool:         clients,
				Prefs:        prefs,
				Sender:       slackService,
				Vault:        vault,
				DefaultURL:   defaultURL,
				Ack:          viper.GetString("bridge.ack_message"),
				PollInterval: viper.GetDuration("bridge.poll_interval"),
				PollBudget:   viper.GetDuration("bridge.poll_budget"),
			})

			probeAgent(ctx, factory, defaultURL)

			runErr := slackService.Run(ctx, chat)

			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), 10*time.Second,
			)
			defer cancel()

			if err := clients.Shutdown(shutdownCtx); err != nil {
				log.Error("pool shutdown incomplete", "error", err)
			}

			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}

			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(slackCmd)
}

/*
openPrefs opens the preference store at the configured path, falling back
to a database next to the config file.
*/
func openPrefs() (stores.PreferenceStore, error) {
	path := viper.GetString("storage.path")

	if path == "" {
		home, _ := os.UserHomeDir()
		path = home + "/." + projectName + "/prefs.db"
	}

	return stores.NewSQLitePrefs(path)
}

/*
clientOptions translates the a2a and auth config sections into client
options shared by every pooled client and the one-shot send command.
*/
func clientOptions() ([]a2a.ClientOption, error) {
	opts := []a2a.ClientOption{
		a2a.WithTimeout(viper.GetDuration("a2a.timeout")),
		a2a.WithReconnect(viper.GetBool("a2a.reconnect")),
		a2a.WithRetry(retryFromConfig()),
	}

	signer, err := authFromConfig()

	if err != nil {
		return nil, err
	}

	if signer != nil {
		opts = append(opts, a2a.WithSigner(signer))
	}

	return opts, nil
}

func retryFromConfig() retry.Config {
	cfg := retry.DefaultConfig()

	if v := viper.GetInt("a2a.retry.max_attempts"); v > 0 {
		cfg.MaxAttempts = v
	}

	if v := viper.GetDuration("a2a.retry.initial_delay"); v > 0 {
		cfg.InitialDelay = v
	}

	if v := viper.GetDuration("a2a.retry.max_delay"); v > 0 {
		cfg.MaxDelay = v
	}

	if v := viper.GetFloat64("a2a.retry.multiplier"); v > 0 {
		cfg.Multiplier = v
	}

	if v := viper.GetFloat64("a2a.retry.jitter"); v > 0 {
		cfg.Jitter = v
	}

	return cfg
}

// authFromConfig returns nil when no credentials are configured, which
// leaves requests unsigned and the echo agent open.
func authFromConfig() (*auth.Service, error) {
	secret := viper.GetString("auth.secret")
	static := viper.GetString("auth.static_token")

	if secret == "" && static == "" {
		return nil, nil
	}

	return auth.NewService(auth.Config{
		Secret: secret,
		Static: static,
		Issuer: viper.GetString("auth.issuer"),
		TTL:    viper.GetDuration("auth.ttl"),
	})
}

func openVault(ctx context.Context) (*s3.Vault, error) {
	endpoint := viper.GetString("vault.endpoint")

	if endpoint == "" {
		log.Info("artifact vault disabled, file artifacts will not be stored")
		return nil, nil
	}

	conn, err := s3.NewConn(
		endpoint,
		viper.GetString("vault.access_key"),
		viper.GetString("vault.secret_key"),
		viper.GetBool("vault.secure"),
	)

	if err != nil {
		return nil, err
	}

	return s3.NewVault(
		ctx,
		conn,
		viper.GetString("vault.bucket"),
		viper.GetDuration("vault.link_ttl"),
	)
}

/*
probeAgent checks the default agent server once at startup. Failure is
logged, not fatal: users can still point the bridge elsewhere with
/setserver.
*/
func probeAgent(ctx context.Context, factory func(string) pool.Client, url string) {
	probe := factory(url)
	defer probe.Close()

	if probe.HealthCheck(ctx) {
		log.Info("default agent server reachable", "url", url)
	} else {
		log.Warn("default agent server unreachable, continuing anyway", "url", url)
	}
}

var longSlack = `
Run the Slack bridge.

The bridge relays direct messages and app mentions to A2A agents and
posts the results back into the conversation. It requires the
SLACK_APP_TOKEN and SLACK_BOT_TOKEN environment variables.

Examples:
  # Run the bridge against the configured default agent server.
  SLACK_APP_TOKEN=xapp-... SLACK_BOT_TOKEN=xoxb-... a2a-bridge slack
`
