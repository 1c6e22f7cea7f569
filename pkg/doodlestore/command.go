package doodlestore

// Command is a discrete application operation selected on the command line.
// Each implementation carries its own options; the [App] dispatches on the
// concrete type.
//
// Current commands:
//   - [RunCommand]: start the status HTTP server
//   - [SyncCommand]: one-shot local-to-remote synchronization
//   - [MigrateCommand]: apply the local schema
type Command interface {
	// Name returns the CLI sub-command the implementation answers to.
	Name() string
}

// RunCommand starts the long-running server: it initializes the manager
// with background tasks enabled and serves the status API until the
// context is cancelled.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// SyncCommand performs a single local-to-remote push and exits. It
// requires a configured remote adapter; the push collects per-record
// failures instead of aborting, so re-running after partial failure is
// safe (remote writes are id-keyed upserts).
type SyncCommand struct{}

func (c *SyncCommand) Name() string { return "sync" }

// MigrateCommand creates or updates the local sqlite schema. Safe to run
// repeatedly; it only adds missing tables and columns.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }
