// Package delivery defines the interface for transport servers.
package delivery

import "context"

// Delivery is a long-running transport server started by the application
// entrypoint and stopped through the lifecycle hooks.
type Delivery interface {
	// Serve blocks until the server stops or fails.
	Serve(ctx context.Context) error
}
