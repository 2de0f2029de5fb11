// Package trace collects poll-tick observations from probe operations.
//
// A Recorder implements probe.Observer and keeps the observations of one
// session in memory; an optional Store persists them to SQLite so flaky
// resolutions can be inspected after the fact (which tick saw how many
// candidates, what value each read produced, how the loop ended).
package trace
