// Package transport defines the handler contract between the HTTP layer
// and the bridge, the middleware chain applied around it, and the mapping
// from the gateway error taxonomy to HTTP responses.
//
// The contract is transport-agnostic: the handler receives a decoded
// request and a ResponseWriter and never touches HTTP types directly.
package transport
