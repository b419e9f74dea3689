// Package handlers implements the CLI command business logic.
//
// Handlers assemble the configuration, build the SSH connector, the
// reachability waiter and the orchestrator, run the batch and turn its report
// into output and an exit code. Collaborators are created through package
// level factory functions that tests replace.
package handlers
