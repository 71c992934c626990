// Package timeouts defines shared timeout constants used across the service.
// Keeping them in one place makes the bounds discoverable.
package timeouts

import "time"

// AdapterFetch bounds one source adapter call, sub-requests included.
const AdapterFetch = 10 * time.Second

// Delivery bounds handing one digest to the mail transport.
const Delivery = 30 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// NATSConnect caps the wait when connecting to the event broker.
const NATSConnect = 2 * time.Second
