package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lapworks/lapstream-go/internal/core/domain"
)

// connectTimeout bounds how long send waits for the connection.
const connectTimeout = 15 * time.Second

// SendCommand sends one command frame to an agent.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a command frame to an agent",
		ArgsUsage: "<event> [payload-json]",
		Description: "Connects, sends a single frame and exits. Example:\n" +
			"   lapstream-cli send subscribe '{\"channel\":\"telemetry_data\"}'",
		Action: runSend,
	}
}

func runSend(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("event name is required")
	}
	event := c.Args().Get(0)

	var payload any
	if raw := c.Args().Get(1); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return fmt.Errorf("payload is not valid JSON: %w", err)
		}
	}

	cl, err := newClient(c)
	if err != nil {
		return err
	}
	defer cl.Disconnect()

	connected := make(chan struct{})
	cl.On(domain.EventConnected, func(any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	failed := make(chan struct{})
	cl.On(domain.EventExhausted, func(any) { close(failed) })

	if err := cl.Connect(); err != nil {
		return err
	}

	select {
	case <-connected:
	case <-failed:
		return fmt.Errorf("could not connect to %s", c.String("endpoint"))
	case <-time.After(connectTimeout):
		return fmt.Errorf("timed out connecting to %s", c.String("endpoint"))
	}

	if err := cl.Send(event, payload); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "sent %s\n", event)
	return nil
}
