// Package buildprops records typed properties against build runs and renders
// them as tables
package buildprops

const (
	Name    = "buildprops"
	Version = "1.0.0"
)
