// Package cmd implements the command-line interface for calagent.
//
// This package provides the following commands:
//   - serve: Start the calendar agent as an HTTP webhook server or MCP server
//   - auth: Authorize access to Google Calendar and cache the token
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
