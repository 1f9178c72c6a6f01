// Package pkgrouter wraps HTTP routing and common middleware used by the API.
//
// It provides a small router abstraction over httprouter plus shared concerns
// like JSON encoding, error mapping, logging, recovery, and correlation ID
// propagation. Handlers return their response payload and the router encodes
// it verbatim; the wire format of each endpoint is therefore exactly the
// struct the handler returns.
package pkgrouter
