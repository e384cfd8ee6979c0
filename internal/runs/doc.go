// Package runs owns the runs of a process, each with exactly one property
// store, and persists them
package runs
