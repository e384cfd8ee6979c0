// Package archive stores completed runs in blob storage
package archive
