// Package client provides a Go client for the build properties HTTP API
package client
