package command

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lapworks/lapstream-go/internal/storage"
)

// SessionsCommand inspects recorded sessions in a local data directory.
func SessionsCommand() *cli.Command {
	dataDirFlag := &cli.StringFlag{
		Name:     "data-dir",
		Usage:    "agent data directory",
		EnvVars:  []string{"LAPSTREAM_STORAGE_DIR"},
		Required: true,
	}
	jsonFlag := &cli.BoolFlag{
		Name:  "json",
		Usage: "print JSON instead of a table",
	}

	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect recorded sessions",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recorded sessions",
				Flags:  []cli.Flag{dataDirFlag, jsonFlag},
				Action: runSessionsList,
			},
			{
				Name:      "laps",
				Usage:     "List the laps of a session",
				ArgsUsage: "<session-id>",
				Flags:     []cli.Flag{dataDirFlag, jsonFlag},
				Action:    runSessionLaps,
			},
		},
	}
}

func openStore(c *cli.Context) (*storage.Store, error) {
	return storage.Open(storage.DefaultConfig(c.String("data-dir")), nil)
}

func runSessionsList(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(c.Context)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return json.NewEncoder(c.App.Writer).Encode(sessions)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCIRCUIT\tMODE\tSTARTED\tLAPS\tBEST")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			s.CircuitName,
			s.GameMode,
			time.UnixMilli(s.StartedAt).Format(time.RFC3339),
			s.LapCount,
			formatLapTime(s.BestLapMillis),
		)
	}
	return w.Flush()
}

func runSessionLaps(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("session ID is required")
	}
	sessionID := c.Args().Get(0)

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	// Fails fast with a clear error if the session does not exist.
	if _, err := store.GetSession(c.Context, sessionID); err != nil {
		return err
	}
	laps, err := store.ListLaps(c.Context, sessionID)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return json.NewEncoder(c.App.Writer).Encode(laps)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LAP\tTIME\tBEST\tCOMPLETED")
	for _, lap := range laps {
		best := ""
		if lap.IsBest {
			best = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			lap.Number,
			formatLapTime(lap.TimeMillis),
			best,
			time.UnixMilli(lap.CompletedAt).Format(time.RFC3339),
		)
	}
	return w.Flush()
}

// formatLapTime renders milliseconds as m:ss.mmm.
func formatLapTime(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	minutes := int(d.Minutes())
	seconds := d - time.Duration(minutes)*time.Minute
	return fmt.Sprintf("%d:%06.3f", minutes, seconds.Seconds())
}
