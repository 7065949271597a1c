package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lapworks/lapstream-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "lapstream-cli",
		Usage:   "LapStream telemetry command-line tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			WatchCommand(),
			SendCommand(),
			SessionsCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "endpoint",
			Aliases: []string{"e"},
			Usage:   "agent endpoint URL",
			EnvVars: []string{"LAPSTREAM_ENDPOINT"},
			Value:   "http://localhost:8000/ws",
		},
		&cli.DurationFlag{
			Name:  "reconnect-delay",
			Usage: "pause between reconnection attempts",
			Value: 2 * time.Second,
		},
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "reconnection attempts before giving up",
			Value: 5,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "enable debug logging",
		},
	}
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			info := buildinfo.Get()
			fmt.Fprintf(c.App.Writer, "lapstream-cli %s\n", info.Version)
			fmt.Fprintf(c.App.Writer, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(c.App.Writer, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(c.App.Writer, "  go version: %s\n", info.GoVersion)
			return nil
		},
	}
}
