package doodlestore

import (
	"flag"
	"fmt"
)

// Parse maps command line arguments to a Command. Configuration comes from
// the environment, so the flag set exists only for -h output and future
// per-command flags.
func Parse(args []string) (Command, error) {
	flagSet := flag.NewFlagSet("doodlestore", flag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		return nil, fmt.Errorf(`subcommand required

Usage: doodlestore <command>

Commands:
  run       Start the storage service and status API
  sync      Push local sessions to the remote store once
  migrate   Create or update the local database schema

Configuration is read from DOODLE_* environment variables; see the Config
type for the full list. Examples:

  doodlestore run
  DOODLE_SURREAL_ENDPOINT=ws://localhost:8000/rpc doodlestore run
  DOODLE_SURREAL_ENDPOINT=ws://localhost:8000/rpc doodlestore sync`)
	}

	switch remaining[0] {
	case "run":
		return &RunCommand{}, nil
	case "sync":
		return &SyncCommand{}, nil
	case "migrate":
		return &MigrateCommand{}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", remaining[0])
	}
}
