package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/a2a-relay/pkg/a2a"
	"github.com/agent-protocol/a2a-relay/pkg/api"
	"github.com/agent-protocol/a2a-relay/pkg/relay"
	"github.com/agent-protocol/a2a-relay/pkg/tasks"
)

// serveCommand creates the 'serve' command.
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Starts the relay HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Host to bind the server to",
				Value:   "0.0.0.0",
				EnvVars: []string{"RELAY_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Port to bind the server to",
				Value:   8080,
				EnvVars: []string{"RELAY_PORT"},
			},
			&cli.StringFlag{
				Name:     "agent-endpoint",
				Usage:    "Remote agent endpoint template with an '{agent}' placeholder",
				Required: true,
				EnvVars:  []string{"RELAY_AGENT_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "callback-url",
				Usage:   "Externally reachable URL of this relay's /push-callback endpoint",
				EnvVars: []string{"RELAY_CALLBACK_URL"},
			},
			&cli.StringFlag{
				Name:    "task-store-uri",
				Usage:   "Task store backend ('memory://' or 'file://<dir>')",
				Value:   "memory://",
				EnvVars: []string{"RELAY_TASK_STORE_URI"},
			},
			&cli.StringSliceFlag{
				Name:    "allow-origins",
				Usage:   "Origins allowed for CORS",
				EnvVars: []string{"RELAY_ALLOW_ORIGINS"},
			},
			&cli.DurationFlag{
				Name:    "remote-timeout",
				Usage:   "Timeout for calls to remote agents",
				Value:   600 * time.Second,
				EnvVars: []string{"RELAY_REMOTE_TIMEOUT"},
			},
		},
		Action: serveCommandAction,
	}
}

func serveCommandAction(c *cli.Context) error {
	logger := slog.Default()

	store, err := tasks.NewStore(c.String("task-store-uri"))
	if err != nil {
		return fmt.Errorf("failed to create task store: %w", err)
	}

	clientConfig := a2a.DefaultClientConfig()
	clientConfig.Timeout = c.Duration("remote-timeout")

	factory, err := a2a.NewClientFactory(c.String("agent-endpoint"), clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create client factory: %w", err)
	}
	clients := relay.ClientFactoryFunc(func(agentID string) (relay.TaskClient, error) {
		return factory.ClientFor(agentID)
	})

	service := relay.NewService(clients, store, &relay.ServiceConfig{
		CallbackURL: c.String("callback-url"),
		Logger:      logger,
	})

	config := &api.ServerConfig{
		Host:         c.String("host"),
		Port:         c.Int("port"),
		AllowOrigins: c.StringSlice("allow-origins"),
	}

	logger.Info("relay configuration",
		"agent_endpoint", c.String("agent-endpoint"),
		"callback_url", c.String("callback-url"),
		"task_store", c.String("task-store-uri"))

	server := api.NewServer(config, service, logger)
	return server.Start()
}
