// Package command provides CLI command definitions for lapstream-cli.
//
// It uses urfave/cli/v2 for command parsing. The watch command
// attaches to a running agent and streams events to stdout; the
// sessions commands inspect a local data directory.
package command
