// Package config loads service settings from defaults and the environment
package config
