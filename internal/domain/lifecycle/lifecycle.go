// Package lifecycle holds shared constants for process lifecycle management.
package lifecycle

import "time"

// DefaultTimeout bounds startup and shutdown hooks.
const DefaultTimeout = 10 * time.Second
