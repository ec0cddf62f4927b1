// Package calendar provides the agent's boundary to Google Calendar.
//
// The Gateway interface covers the four operations the orchestrator needs
// (list, create, update, delete); Client implements it for a single
// configured calendar with OAuth or service account credentials. The
// package also houses free-text event matching and the display formatting
// shared by confirmation prompts and query results.
package calendar
