// Command geniectl is the operator CLI for the glucose monitoring backend.
// It works directly against the configured database, so it can run while
// the server is up (SQLite WAL mode) or without it.
package main

import "github.com/geniesugar/glucose-monitor/cmd/geniectl/commands"

func main() {
	commands.Execute()
}
