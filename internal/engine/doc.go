// Package engine provides the resumable streaming workflow engine. It owns
// task lifecycle (pending → generating → completed/failed), drives the
// pipeline for each task in a background goroutine, appends every observable
// event to the task's append-only log, and exposes the reconnect/replay
// subscriber protocol over that log. Runner and subscribers communicate only
// through the event log store, which is what makes reconnection possible.
package engine
