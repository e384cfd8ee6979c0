// Package api defines the shared data types for build properties
//
// This package contains the typed property values, the derived display
// tables, run and wait descriptors, and the HTTP messages exchanged with the
// remote surface
package api
