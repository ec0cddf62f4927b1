// Package actions holds the agent's mutation safety state: the registry of
// pending actions awaiting confirmation and the bounded history of actions
// already executed.
//
// The Store is the one piece of shared mutable state in the agent. Its
// consume-on-read discipline (an action is removed from the map in the same
// critical section that returns it) is what makes duplicate or racing
// confirm requests safe: the calendar mutation behind an action id can run
// at most once.
package actions
