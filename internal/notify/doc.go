// Package notify fans property changes out to registered listeners
//
// A Registry is constructed once per process and handed to every property
// store and wait coordinator that needs it. Delivery is synchronous on the
// mutating goroutine, and each listener is isolated from the others
package notify
