// Package main provides the entry point for lapstream-cli.
//
// lapstream-cli streams live events from a running agent and inspects
// recorded sessions.
package main
