// Package util provides small generic data structures
//
// This package includes a generic set and a hierarchical path index used to
// key scheduled tasks
package util
