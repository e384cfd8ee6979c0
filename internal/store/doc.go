// Package store holds the per-run property map
package store
