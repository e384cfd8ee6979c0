// Package wait suspends callers until a set of property keys exists on a run
//
// A Coordinator combines a change listener, a periodic fallback poll and an
// optional timeout. Whichever trigger completes it first wins, and every
// resource it acquired is released by that single completion. The Manager
// tracks coordinators by ID and records their outcomes
package wait
