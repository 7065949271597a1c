package command

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lapworks/lapstream-go/internal/client"
	"github.com/lapworks/lapstream-go/internal/core/domain"
	"github.com/lapworks/lapstream-go/internal/telemetry/logger"
)

// watchEvents are the channels printed by default.
var watchEvents = []string{
	domain.EventTelemetryData,
	domain.EventSessionUpdate,
	domain.EventLapCompleted,
	domain.EventBestLap,
	domain.EventConnected,
	domain.EventDisconnected,
	domain.EventConnectionError,
	domain.EventReconnected,
	domain.EventExhausted,
}

// WatchCommand streams agent events to stdout as JSON lines.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream live events from an agent",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "channel",
				Aliases: []string{"c"},
				Usage:   "only print these channels (repeatable)",
			},
		},
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	defer cl.Disconnect()

	events := watchEvents
	if chosen := c.StringSlice("channel"); len(chosen) > 0 {
		events = chosen
	}

	out := json.NewEncoder(c.App.Writer)
	exhausted := make(chan struct{})
	for _, event := range events {
		ev := event
		cl.On(ev, func(payload any) {
			line := map[string]any{
				"event":   ev,
				"payload": payload,
				"at":      time.Now().Format(time.RFC3339Nano),
			}
			if err := out.Encode(line); err != nil {
				logger.Error("write output failed", "error", err)
			}
			if ev == domain.EventExhausted {
				close(exhausted)
			}
		})
	}

	if err := cl.Connect(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		return nil
	case <-exhausted:
		return fmt.Errorf("connection lost and reconnection attempts exhausted")
	}
}

// newClient builds a client from the global flags.
func newClient(c *cli.Context) (*client.Client, error) {
	if c.Bool("verbose") {
		logger.SetLevel("debug")
	}

	cfg := client.DefaultConfig()
	cfg.EndpointURL = c.String("endpoint")
	cfg.ReconnectDelay = c.Duration("reconnect-delay")
	cfg.MaxReconnectAttempts = c.Int("max-attempts")
	return client.New(cfg)
}
