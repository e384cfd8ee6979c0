// Package server implements the HTTP API for build properties
//
// This package provides REST endpoints for runs, properties, tables, test
// counts and waits, plus a WebSocket feed of property changes
package server
