// Package cli provides the interactive tokenkeeper command-line client.
//
// It wires configuration and the gRPC AuthService client into a small REPL:
// register, login, refresh, logout and me. Tokens live only in memory for
// the lifetime of the process.
package cli
