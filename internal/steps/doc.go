// Package steps implements the pipeline-facing operations on run
// properties: set, get from ancestors, test counts, tables and waits. Every
// mutation is persisted before it returns
package steps
