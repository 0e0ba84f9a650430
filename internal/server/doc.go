// Package server hosts the Fiber HTTP service and its request middleware
// chain: panic recovery, request IDs, access logging, and JSON error
// rendering. Route groups live in the routes subpackage and are attached by
// the CLI after NewApp returns, so this package stays free of domain
// dependencies and accepts only explicit collaborators.
package server
