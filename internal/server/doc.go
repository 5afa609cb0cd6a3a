// Package server hosts the Fiber HTTP service and the request middleware chain
// that sits in front of the stylesheet handler. It attaches panic recovery and
// request IDs, reserves the `/-/` prefix for diagnostics, and hands every other
// GET/HEAD request to the injected handler. Keep exports narrow and accept
// explicit dependencies so main and tests can wire fakes.
package server
