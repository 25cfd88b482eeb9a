// Package client is the gRPC client for the tokenkeeper AuthService. It
// keeps the current token pair in memory, attaches the access token to
// protected calls and rotates the pair once when the server rejects it.
package client
